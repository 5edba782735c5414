// Package storage opens the configured persistent key-value backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jsamuelsen/qotd/internal/adapters/storage/file"
	"github.com/jsamuelsen/qotd/internal/adapters/storage/memory"
	"github.com/jsamuelsen/qotd/internal/adapters/storage/redis"
	"github.com/jsamuelsen/qotd/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/qotd/internal/platform/config"
	"github.com/jsamuelsen/qotd/internal/ports"
)

// Backend is a key-value store that can report its health and be closed.
type Backend interface {
	ports.KeyValueStore
	ports.HealthChecker
	io.Closer
}

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "storage"), slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.StorageBackendSQLite:
		return opened[*sqlite.Store](sqlite.Open(ctx, sqlite.Config{Path: cfg.Path, Logger: logger}))

	case config.StorageBackendFile:
		return opened[*file.Store](file.Open(file.Config{Path: cfg.Path, Logger: logger}))

	case config.StorageBackendRedis:
		return opened[*redis.Store](redis.Open(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Prefix:       cfg.Redis.Prefix,
			DialTimeout:  cfg.Redis.DialTimeout,
			ConnectRetry: cfg.Redis.ConnectRetry,
			Logger:       logger,
		}))

	case config.StorageBackendMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// opened returns a nil Backend on error rather than one holding a nil store.
func opened[T Backend](b T, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}

	return b, nil
}

// Package redis provides a key-value store backed by a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

const (
	defaultDialTimeout = 2 * time.Second
	initialRetryWait   = 200 * time.Millisecond
	maxRetryWait       = 2 * time.Second
)

// Config configures the redis store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key, e.g. "qotd:".
	Prefix string

	DialTimeout time.Duration

	// ConnectRetry is the number of ping attempts made by Open. Zero means one.
	ConnectRetry int

	Logger *slog.Logger
}

// Store implements ports.KeyValueStore on Redis strings.
type Store struct {
	client goredis.UniversalClient
	prefix string
	logger *slog.Logger
}

// Open connects to Redis, retrying the initial ping with exponential backoff.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := connectWithRetry(ctx, client, cfg.Addr, max(cfg.ConnectRetry, 1), dialTimeout, logger); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client. The caller must have checked connectivity.
func NewWithClient(client goredis.UniversalClient, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{client: client, prefix: prefix, logger: logger}
}

func connectWithRetry(ctx context.Context, client *goredis.Client, addr string, attempts int, pingTimeout time.Duration, logger *slog.Logger) error {
	wait := initialRetryWait

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			if attempt > 1 {
				logger.WarnContext(ctx, "connected to redis after retry",
					slog.String("addr", addr),
					slog.Int("attempts", attempt))
			} else {
				logger.InfoContext(ctx, "connected to redis", slog.String("addr", addr))
			}

			return nil
		}

		if attempt == attempts {
			break
		}

		logger.WarnContext(ctx, "redis connection failed, retrying",
			slog.String("addr", addr),
			slog.Int("attempt", attempt),
			slog.Duration("next_retry_in", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis unavailable at %s: %w", addr, ctx.Err())
		case <-timer.C:
		}

		wait = min(wait*2, maxRetryWait)
	}

	return fmt.Errorf("redis unavailable at %s after %d attempts: %w", addr, attempts, err)
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		s.logger.Log(ctx, logging.LevelTrace, "get", slog.String("key", key), slog.Bool("found", false))
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	s.logger.Log(ctx, logging.LevelTrace, "get", slog.String("key", key), slog.Bool("found", true))

	return v, true, nil
}

// Set implements ports.KeyValueStore. Values never expire.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	s.logger.Log(ctx, logging.LevelTrace, "set", slog.String("key", key), slog.Int("bytes", len(value)))

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "storage" }

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

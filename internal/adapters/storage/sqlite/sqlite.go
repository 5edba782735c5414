// Package sqlite provides a key-value store in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	getQuery = `SELECT value FROM kv WHERE key = ?`
	setQuery = `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
)

// Config configures the SQLite store.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	Logger *slog.Logger
}

// Store implements ports.KeyValueStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the database at cfg.Path (creating parent dirs and schema).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("sqlite mkdir: %w", err)
			}
		}

		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// One connection keeps writers from tripping over "database is locked"
	// and keeps a ":memory:" database alive for the life of the Store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.Debug("sqlite store opened", slog.String("path", cfg.Path))

	return &Store{db: db, logger: logger}, nil
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.QueryRowContext(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Log(ctx, logging.LevelTrace, "get", slog.String("key", key), slog.Bool("found", false))
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("sqlite get %s: %w", key, err)
	}

	s.logger.Log(ctx, logging.LevelTrace, "get", slog.String("key", key), slog.Bool("found", true))

	return value, true, nil
}

// Set implements ports.KeyValueStore.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, setQuery, key, value); err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}

	s.logger.Log(ctx, logging.LevelTrace, "set", slog.String("key", key), slog.Int("bytes", len(value)))

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "storage" }

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package file provides a key-value store kept in a single JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Config configures the file store.
type Config struct {
	// Path is the JSON file. Parent directories are created on Open.
	Path string

	Logger *slog.Logger
}

// Store holds every key in memory and rewrites the whole file on each Set.
// Writes go to a temp file in the same directory followed by a rename, so
// a crash leaves either the old or the new file, never a partial one.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

// Open loads path, or starts empty when it does not exist yet. A file that
// does not decode is renamed to path.corrupt-<timestamp> and the store
// starts empty.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("file store: path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
		return nil, fmt.Errorf("file store mkdir: %w", err)
	}

	values := make(map[string]string)

	data, err := os.ReadFile(cfg.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("file store read %s: %w", cfg.Path, err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &values); err != nil {
			aside, moveErr := moveAside(cfg.Path)
			if moveErr != nil {
				return nil, fmt.Errorf("file store decode %s: %w", cfg.Path, errors.Join(err, moveErr))
			}

			logger.Warn("file store corrupt, starting empty",
				slog.String("path", cfg.Path),
				slog.String("moved_to", aside),
				slog.Any("error", err),
			)

			values = make(map[string]string)
		}
	}

	logger.Debug("file store opened", slog.String("path", cfg.Path), slog.Int("keys", len(values)))

	return &Store{path: cfg.Path, logger: logger, values: values}, nil
}

func moveAside(path string) (string, error) {
	aside := path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000")
	if err := os.Rename(path, aside); err != nil {
		return "", fmt.Errorf("moving corrupt file aside: %w", err)
	}

	return aside, nil
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	s.logger.Log(ctx, logging.LevelTrace, "get", slog.String("key", key), slog.Bool("found", ok))

	return v, ok, nil
}

// Set implements ports.KeyValueStore.
// The in-memory value is only updated once the file write succeeds.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.values)
	next[key] = value

	if err := s.writeFile(next); err != nil {
		return err
	}

	s.values = next
	s.logger.Log(ctx, logging.LevelTrace, "set", slog.String("key", key), slog.Int("bytes", len(value)))

	return nil
}

func (s *Store) writeFile(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("file store encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file store temp: %w", err)
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store close: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("file store chmod: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("file store rename: %w", err)
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "storage" }

// Check implements ports.HealthChecker by confirming the directory is still writable.
func (s *Store) Check(context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("file store: %s is not a directory", filepath.Dir(s.path))
	}

	return nil
}

// Close implements io.Closer. Every Set is already on disk.
func (s *Store) Close() error { return nil }

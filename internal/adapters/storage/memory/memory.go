// Package memory provides a process-local key-value store.
// Nothing survives a restart; use it for tests and throwaway runs.
package memory

import (
	"context"
	"maps"
	"sync"
)

// Store is a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// NewWithValues creates a store pre-populated with a copy of values.
func NewWithValues(values map[string]string) *Store {
	s := New()
	maps.Copy(s.values, values)

	return s
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok, nil
}

// Set implements ports.KeyValueStore.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "storage" }

// Check implements ports.HealthChecker. Always healthy.
func (s *Store) Check(context.Context) error { return nil }

// Close implements io.Closer.
func (s *Store) Close() error { return nil }

// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/qotd/internal/domain"
)

// QuoteSource fetches quotes from a remote random-quote service.
//
// Implementations should:
//   - Respect context deadlines and cancellation
//   - Return domain.ErrUnavailable for transport failures and non-2xx statuses
//   - Return domain.ErrValidation when the body does not have the expected shape
type QuoteSource interface {
	// GetRandomQuote issues a single request for a random quote.
	GetRandomQuote(ctx context.Context) (*domain.Quote, error)
}

// KeyValueStore is durable, application-scoped string storage.
// Access is local and synchronous; it may still fail (disk full, backend down).
type KeyValueStore interface {
	// Get returns the stored value. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
}

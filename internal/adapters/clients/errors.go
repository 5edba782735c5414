// Package clients provides the instrumented HTTP client used to reach
// downstream services such as the quote API.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// Infrastructure failures. Callers translate these into domain errors.
var (
	// ErrCircuitOpen is returned without contacting the service while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// StatusError is a retryable status (5xx or 429) that was still returned
// by the final attempt. The response body has already been closed.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

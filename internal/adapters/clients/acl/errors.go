package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/domain"
)

// maxErrorBody bounds how much of an error body is read for context.
const maxErrorBody = 4 << 10

// errorResponse is the error body shape quotable.io returns.
type errorResponse struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Message       string `json:"message"`
}

// parseErrorMessage extracts a message from an error response body.
// Returns "" if the body is empty or not the expected shape.
func parseErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	var errResp errorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&errResp); err != nil {
		return ""
	}

	if errResp.StatusMessage != "" {
		return errResp.StatusMessage
	}

	return errResp.Message
}

// mapClientError translates client-level errors to domain errors. A
// retryable status that outlived the retries is reported like any other
// failed status.
func mapClientError(err error, serviceName, operation string) error {
	var statusErr *clients.StatusError

	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.WrapUnavailable(serviceName,
			fmt.Sprintf("circuit breaker open during %s", operation), err)

	case errors.As(err, &statusErr):
		return domain.WrapUnavailable(serviceName, statusReason(statusErr.StatusCode), err)

	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.WrapUnavailable(serviceName,
			fmt.Sprintf("%s: %v", operation, err), err)

	default:
		return domain.WrapUnavailable(serviceName,
			fmt.Sprintf("%s failed: %v", operation, err), err)
	}
}

// mapStatusCode translates a non-2xx response to a domain error.
// Every non-success status means the source could not provide a quote.
func mapStatusCode(resp *http.Response, serviceName string) error {
	reason := statusReason(resp.StatusCode)

	if msg := parseErrorMessage(resp.Body); msg != "" {
		reason += ": " + msg
	}

	return domain.NewUnavailableError(serviceName, reason)
}

func statusReason(code int) string {
	switch code {
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Sprintf("HTTP %d: service temporarily unavailable", code)
	default:
		return fmt.Sprintf("HTTP %d", code)
	}
}

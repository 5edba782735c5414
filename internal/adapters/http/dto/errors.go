// Package dto holds the JSON shapes of the HTTP API and the helpers that
// bind, validate and write them.
package dto

import "net/http"

// Machine-readable values of ErrorDetail.Code.
const (
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeBadRequest  = "BAD_REQUEST"
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:    http.StatusNotFound,
	ErrorCodeValidation:  http.StatusBadRequest,
	ErrorCodeBadRequest:  http.StatusBadRequest,
	ErrorCodeUnavailable: http.StatusServiceUnavailable,
	ErrorCodeInternal:    http.StatusInternalServerError,
}

// ErrorResponse is the body of every non-2xx API answer.
//
//	{"error": {"code": "NOT_FOUND", "message": "..."}, "traceId": "..."}
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail describes what went wrong. Details maps a request field to
// its problem and is only set for validation failures.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// NewErrorResponse builds an envelope for code.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// Status is the HTTP status that goes with the code. Unknown codes are 500.
func (e *ErrorResponse) Status() int {
	if s, ok := codeStatus[e.Error.Code]; ok {
		return s
	}

	return http.StatusInternalServerError
}

// WithDetails sets the per-field messages and returns e.
func (e *ErrorResponse) WithDetails(details map[string]string) *ErrorResponse {
	e.Error.Details = details
	return e
}

// WithTraceID sets the trace ID and returns e.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

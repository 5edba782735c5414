package dto

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/qotd/internal/domain"
)

// traceIDKey is the gin context key checked before the span and headers.
const traceIDKey = "trace_id"

// requestIDHeader is used as a trace ID when nothing better is available.
const requestIDHeader = "X-Request-ID"

// GetTraceID returns the trace ID for the request, in order of preference:
// a string stored under "trace_id" in the gin context, the active span's
// trace ID, then the X-Request-ID header.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}

		return ""
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return c.Request.Header.Get(requestIDHeader)
}

// ErrorFromDomain maps a domain error to an HTTP status and error envelope.
// Unknown errors get a generic message so internals never leak.
func ErrorFromDomain(err error) (int, *ErrorResponse) {
	var resp *ErrorResponse

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		resp = NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.KindValidation:
		resp = NewErrorResponse(ErrorCodeValidation, err.Error())

		var de *domain.Error
		if errors.As(err, &de) && de.Subject != "" {
			resp.WithDetails(map[string]string{de.Subject: de.Detail})
		}

	case domain.KindUnavailable:
		resp = NewErrorResponse(ErrorCodeUnavailable, err.Error())

	default:
		resp = NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}

	return resp.Status(), resp
}

// HandleError writes the mapped error response with the request's trace ID.
func HandleError(c *gin.Context, err error) {
	status, resp := ErrorFromDomain(err)
	c.JSON(status, resp.WithTraceID(GetTraceID(c)))
}

// HandleValidationError writes a 400 for a failed BindAndValidate call.
// Field-level details are included when the validator produced them.
func HandleValidationError(c *gin.Context, err error) {
	resp := NewErrorResponse(ErrorCodeBadRequest, "malformed request")

	if details := ValidationErrors(err); len(details) > 0 {
		resp = NewErrorResponse(ErrorCodeValidation, "request validation failed").WithDetails(details)
	}

	c.JSON(resp.Status(), resp.WithTraceID(GetTraceID(c)))
}

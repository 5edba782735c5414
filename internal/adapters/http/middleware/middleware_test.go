package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/qotd/internal/adapters/http/dto"
	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIDMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		middleware gin.HandlerFunc
		header     string
		fromGin    func(*gin.Context) string
		fromCtx    func(context.Context) string
	}{
		{
			name:       "request id",
			middleware: RequestID(),
			header:     HeaderRequestID,
			fromGin:    GetRequestID,
			fromCtx:    RequestIDFromContext,
		},
		{
			name:       "correlation id",
			middleware: CorrelationID(),
			header:     HeaderCorrelationID,
			fromGin:    GetCorrelationID,
			fromCtx:    CorrelationIDFromContext,
		},
	}

	for _, tt := range tests {
		for _, incoming := range []string{"", "upstream-123"} {
			t.Run(tt.name+"/incoming="+incoming, func(t *testing.T) {
				var ginID, ctxID string

				router := gin.New()
				router.Use(tt.middleware)
				router.GET("/", func(c *gin.Context) {
					ginID = tt.fromGin(c)
					ctxID = tt.fromCtx(c.Request.Context())
					c.Status(http.StatusNoContent)
				})

				req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
				if incoming != "" {
					req.Header.Set(tt.header, incoming)
				}

				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				respID := w.Header().Get(tt.header)
				assert.Equal(t, respID, ginID)
				assert.Equal(t, respID, ctxID)

				if incoming != "" {
					assert.Equal(t, incoming, respID)
					return
				}

				_, err := uuid.Parse(respID)
				assert.NoError(t, err, "generated id should be a UUID")
			})
		}
	}
}

func TestIDFromContext_Unset(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck // nil context is handled
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		skip      []string
		wantLine  bool
		wantLevel string
	}{
		{name: "success logged at info", path: "/api/v1/quotes/today", status: http.StatusOK, wantLine: true, wantLevel: "INFO"},
		{name: "client error logged at warn", path: "/api/v1/favorites", status: http.StatusBadRequest, wantLine: true, wantLevel: "WARN"},
		{name: "server error logged at error", path: "/api/v1/favorites", status: http.StatusInternalServerError, wantLine: true, wantLevel: "ERROR"},
		{name: "internal paths skipped", path: "/-/live", status: http.StatusOK},
		{name: "explicit skip", path: "/api/v1/quotes/today", status: http.StatusOK, skip: []string{"/api/v1/quotes/today"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

			router := gin.New()
			router.Use(RequestID(), CorrelationID(), Logging(logger, tt.skip...))
			router.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Header.Set(HeaderRequestID, "req-1")
			router.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.wantLine {
				assert.Empty(t, buf.String())
				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, tt.path, entry["route"])
			assert.Equal(t, "req-1", entry["request_id"])
			assert.NotEmpty(t, entry["correlation_id"])
			assert.InDelta(t, float64(tt.status), entry["status"], 0)
		})
	}
}

func TestLogging_UnmatchedRoute(t *testing.T) {
	var buf bytes.Buffer

	router := gin.New()
	router.Use(Logging(slog.New(slog.NewJSONHandler(&buf, nil))))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))

	assert.Contains(t, buf.String(), `"route":"unmatched"`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(Recovery(logger), RequestID())
	router.GET("/panic", func(*gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", http.NoBody)
	req.Header.Set(HeaderRequestID, "req-panic")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.Equal(t, "req-panic", resp.TraceID)

	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestRecovery_AfterWrite(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(slog.New(slog.DiscardHandler)))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "partial"))
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "sets deadline", timeout: time.Second, wantDeadline: true},
		{name: "zero disables", timeout: 0},
		{name: "negative disables", timeout: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hasDeadline bool

			router := gin.New()
			router.Use(Timeout(tt.timeout))
			router.GET("/", func(c *gin.Context) {
				_, hasDeadline = c.Request.Context().Deadline()
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			assert.Equal(t, tt.wantDeadline, hasDeadline)
		})
	}
}

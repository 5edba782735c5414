package acl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/domain"
	"github.com/jsamuelsen/qotd/internal/platform/config"
)

// httpClient builds a single-attempt client so each case sees exactly one
// upstream answer.
func httpClient(t *testing.T, baseURL string, maxFailures int) *clients.Client {
	t.Helper()

	c, err := clients.New(&clients.Config{
		ServiceName: "quotable",
		BaseURL:     baseURL,
		Timeout:     time.Second,
		Retry:       config.RetryConfig{MaxAttempts: 1},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   maxFailures,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
	})
	require.NoError(t, err)

	return c
}

// serve starts body-writing upstream and returns a QuoteClient aimed at it.
func serve(t *testing.T, status int, body string) *QuoteClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return NewQuoteClient(QuoteClientConfig{
		Client:      httpClient(t, srv.URL, 10),
		ServiceName: "quote-service",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestNewQuoteClient(t *testing.T) {
	assert.Panics(t, func() { NewQuoteClient(QuoteClientConfig{}) })

	qc := NewQuoteClient(QuoteClientConfig{Client: httpClient(t, "http://127.0.0.1:1", 1)})
	assert.Equal(t, "quote-service", qc.Name(), "default name")
	assert.NotNil(t, qc.logger)

	qc = NewQuoteClient(QuoteClientConfig{Client: httpClient(t, "http://127.0.0.1:1", 1), ServiceName: "quotable"})
	assert.Equal(t, "quotable", qc.Name())
}

func TestGetRandomQuote_Request(t *testing.T) {
	got := make(chan *http.Request, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Clone(context.Background())
		_, _ = io.WriteString(w, `{"_id":"abc123","content":"Be the change you wish to see in the world","author":"Mahatma Gandhi","tags":["change"]}`)
	}))
	defer srv.Close()

	qc := NewQuoteClient(QuoteClientConfig{Client: httpClient(t, srv.URL, 10)})

	quote, err := qc.GetRandomQuote(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &domain.Quote{
		ID:     "abc123",
		Text:   "Be the change you wish to see in the world",
		Author: "Mahatma Gandhi",
	}, quote, "unknown fields such as tags are dropped")

	req := <-got
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/random", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestGetRandomQuote_Body(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *domain.Quote
		wantErr string // substring; the error is then a validation error
	}{
		{
			name: "missing author is allowed",
			body: `{"_id":"q1","content":"Anonymous wisdom"}`,
			want: &domain.Quote{ID: "q1", Text: "Anonymous wisdom"},
		},
		{name: "invalid json", body: "invalid json {", wantErr: "decoding quote response"},
		{name: "array instead of object", body: `[{"_id":"x"}]`, wantErr: "decoding quote response"},
		{name: "missing id", body: `{"content":"text","author":"a"}`, wantErr: "_id"},
		{name: "missing content", body: `{"_id":"x","author":"a"}`, wantErr: "content"},
		{name: "empty content", body: `{"_id":"x","content":"","author":"a"}`, wantErr: "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := serve(t, http.StatusOK, tt.body).GetRandomQuote(context.Background())

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, quote)

				return
			}

			require.Error(t, err)
			assert.Nil(t, quote)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetRandomQuote_ErrorStatus(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		wantMsg string
	}{
		{http.StatusInternalServerError, "", "HTTP 500"},
		{http.StatusServiceUnavailable, "", "HTTP 503: service temporarily unavailable"},
		{http.StatusTooManyRequests, "", "rate limit exceeded"},
		{http.StatusNotFound, "", "HTTP 404"},
		{http.StatusBadRequest, `{"statusCode":400,"statusMessage":"Invalid query"}`, "Invalid query"},
		{http.StatusUnauthorized, `{"message":"missing key"}`, "missing key"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			quote, err := serve(t, tt.status, tt.body).GetRandomQuote(context.Background())

			require.Error(t, err)
			assert.Nil(t, quote)
			assert.True(t, domain.IsUnavailable(err))
			assert.Contains(t, err.Error(), "quote-service")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGetRandomQuote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	qc := NewQuoteClient(QuoteClientConfig{Client: httpClient(t, url, 10)})

	quote, err := qc.GetRandomQuote(context.Background())

	require.Error(t, err)
	assert.Nil(t, quote)
	assert.True(t, domain.IsUnavailable(err))
}

func TestGetRandomQuote_OpenCircuit(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	qc := NewQuoteClient(QuoteClientConfig{Client: httpClient(t, srv.URL, 1)})

	_, err := qc.GetRandomQuote(context.Background())
	require.Error(t, err)

	_, err = qc.GetRandomQuote(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.ErrorIs(t, err, clients.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, qc.Check(context.Background()), clients.ErrCircuitOpen)
}

func TestQuoteClient_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{"ok", http.StatusOK, ""},
		{"server error", http.StatusServiceUnavailable, "503"},
		{"client error", http.StatusForbidden, "status 403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serve(t, tt.status, `{"_id":"h","content":"Health"}`).Check(context.Background())

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/qotd/internal/adapters/http/middleware"
	"github.com/jsamuelsen/qotd/internal/platform/config"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		ServiceName: "quote-api",
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   5,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
	}
}

// scripted answers with statuses[i] on the i-th call, repeating the last.
func scripted(statuses ...int) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		w.WriteHeader(statuses[min(n, len(statuses)-1)])
	}))

	return srv, &calls
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()

	if resp != nil {
		assert.NoError(t, resp.Body.Close())
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "config is required")

	cfg := testConfig("https://api.quotable.io/")
	cfg.ServiceName = ""
	_, err = New(cfg)
	require.ErrorContains(t, err, "service name is required")

	c, err := New(testConfig("https://api.quotable.io/"))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, c.CircuitState())
	assert.Equal(t, "https://api.quotable.io/random", c.URL("random"))
	assert.Equal(t, "https://api.quotable.io/random", c.URL("/random"))
}

func TestClient_Statuses(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		statuses    []int
		wantStatus  int // 0 when Do must fail
		wantCalls   int32
		wantBreaker State
	}{
		{"ok first time", 3, []int{200}, 200, 1, StateClosed},
		{"recovers after 5xx", 3, []int{500, 502, 200}, 200, 3, StateClosed},
		{"recovers after 429", 2, []int{429, 200}, 200, 2, StateClosed},
		{"4xx is returned, not retried", 3, []int{404}, 404, 1, StateClosed},
		{"5xx exhausts attempts", 3, []int{503}, 0, 3, StateClosed},
		{"zero attempts means one", 0, []int{500}, 0, 1, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := scripted(tt.statuses...)
			defer srv.Close()

			cfg := testConfig(srv.URL)
			cfg.Retry.MaxAttempts = tt.attempts

			c, err := New(cfg)
			require.NoError(t, err)

			resp, err := c.Get(context.Background(), "/random")
			defer closeBody(t, resp)

			if tt.wantStatus == 0 {
				require.ErrorIs(t, err, ErrMaxRetriesExceeded)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, resp.StatusCode)
			}

			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.Equal(t, tt.wantBreaker, c.CircuitState())
		})
	}
}

func TestClient_BreakerOpensAndShortCircuits(t *testing.T) {
	srv, calls := scripted(http.StatusServiceUnavailable)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retry.MaxAttempts = 1
	cfg.Circuit.MaxFailures = 2

	c, err := New(cfg)
	require.NoError(t, err)

	for range 2 {
		_, err = c.Get(context.Background(), "/random")
		require.Error(t, err)
	}

	require.Equal(t, StateOpen, c.CircuitState())

	_, err = c.Get(context.Background(), "/random")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_PropagatesHeaders(t *testing.T) {
	got := make(chan http.Header, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := middleware.ContextWithRequestID(context.Background(), "req-1")
	ctx = middleware.ContextWithCorrelationID(ctx, "corr-1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/random"), http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	require.NoError(t, err)
	defer closeBody(t, resp)

	h := <-got
	assert.Equal(t, "req-1", h.Get(middleware.HeaderRequestID))
	assert.Equal(t, "corr-1", h.Get(middleware.HeaderCorrelationID))
	assert.Equal(t, "application/json", h.Get("Accept"), "caller headers are kept")
}

func TestNewTransport(t *testing.T) {
	tr := newTransport(config.TransportConfig{})
	assert.Equal(t, transportMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, transportMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, transportIdleConnTimeout, tr.IdleConnTimeout)

	tr = newTransport(config.TransportConfig{MaxIdleConns: 4, MaxIdleConnsPerHost: 2, IdleConnTimeout: 5 * time.Second})
	assert.Equal(t, 4, tr.MaxIdleConns)
	assert.Equal(t, 2, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 5*time.Second, tr.IdleConnTimeout)
}

func TestClient_FinalStatusIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.MaxAttempts = 2

	client, err := New(cfg)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/random")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, err.Error(), "2 attempt(s)")
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialInterval = time.Millisecond
	cfg.Retry.MaxInterval = 2 * time.Second

	c, err := New(cfg)
	require.NoError(t, err)

	start := time.Now()
	resp, err := c.Get(context.Background(), "/random")
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond, "waited for the hint, not the 1ms backoff")
}

func TestClient_RewindsBodyOnRetry(t *testing.T) {
	bodies := make(chan string, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)

		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.URL("/echo"), strings.NewReader("payload"))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer closeBody(t, resp)

	require.Len(t, bodies, 2)
	assert.Equal(t, "payload", <-bodies)
	assert.Equal(t, "payload", <-bodies, "resent body")
}

func TestClient_RetriesAttemptTimeout(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry.MaxAttempts = 2

	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/random")
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_CancellationDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Circuit.MaxFailures = 1

	client, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Get(ctx, "/random")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, StateClosed, client.CircuitState())
}

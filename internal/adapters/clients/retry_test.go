package clients

import (
	"context"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen/qotd/internal/platform/config"
)

func testPolicy(jitter float64, r float64) retryPolicy {
	p := newRetryPolicy(config.RetryConfig{
		MaxAttempts:     4,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		JitterFactor:    jitter,
	})
	p.rand = func() float64 { return r }

	return p
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := testPolicy(0, 0)

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.backoff(tt.retry), "retry %d", tt.retry)
	}
}

func TestRetryPolicy_Jitter(t *testing.T) {
	// rand 0 maps to -jitter, rand 1 to just under +jitter.
	low := testPolicy(0.5, 0)
	assert.Equal(t, 50*time.Millisecond, low.backoff(1))

	mid := testPolicy(0.5, 0.5)
	assert.Equal(t, 100*time.Millisecond, mid.backoff(1))

	high := testPolicy(0.5, 0.999)
	assert.InDelta(t, float64(150*time.Millisecond), float64(high.backoff(1)), float64(time.Millisecond))
}

func TestNewRetryPolicy_Clamps(t *testing.T) {
	p := newRetryPolicy(config.RetryConfig{
		InitialInterval: 10 * time.Millisecond,
		Multiplier:      0.5,
		JitterFactor:    3,
	})

	assert.Equal(t, 1, p.attempts)
	assert.InDelta(t, 1.0, p.multiplier, 0)
	assert.InDelta(t, 1.0, p.jitter, 0)
	assert.Equal(t, 10*time.Millisecond, p.maxWait)
}

func TestRetryPolicy_WaitPrefersHint(t *testing.T) {
	p := testPolicy(0, 0)

	assert.Equal(t, 300*time.Millisecond, p.wait(1, 300*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, p.wait(1, 0), "no hint")
	assert.Equal(t, 100*time.Millisecond, p.wait(1, time.Minute), "hint beyond max wait is ignored")
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"absent", "", 0},
		{"seconds", "2", 2 * time.Second},
		{"http date", now.Add(3 * time.Second).Format(http.TimeFormat), 3 * time.Second},
		{"date in the past", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"negative", "-1", 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}

			assert.Equal(t, tt.want, retryAfter(h, now))
		})
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, retryableStatus(code), "%d", code)
	}

	for _, code := range []int{200, 204, 301, 400, 401, 404, 409} {
		assert.False(t, retryableStatus(code), "%d", code)
	}
}

// testNetError is a mock net.Error for testing.
type testNetError struct {
	timeout bool
}

func (e testNetError) Error() string   { return "test net error" }
func (e testNetError) Timeout() bool   { return e.timeout }
func (e testNetError) Temporary() bool { return true }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"attempt deadline exceeded", context.DeadlineExceeded, true},
		{"net error with timeout", testNetError{timeout: true}, true},
		{"net error without timeout", testNetError{timeout: false}, false},
		{"net op error connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.err))
		})
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

package clients

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jsamuelsen/qotd/internal/platform/config"
)

// retryPolicy decides whether an attempt is retried and how long to wait.
type retryPolicy struct {
	attempts   int
	initial    time.Duration
	maxWait    time.Duration
	multiplier float64
	jitter     float64

	// rand returns a value in [0,1). Overridable in tests.
	rand func() float64
}

func newRetryPolicy(cfg config.RetryConfig) retryPolicy {
	p := retryPolicy{
		attempts:   max(cfg.MaxAttempts, 1),
		initial:    cfg.InitialInterval,
		maxWait:    cfg.MaxInterval,
		multiplier: cfg.Multiplier,
		jitter:     cfg.JitterFactor,
		rand:       rand.Float64, //nolint:gosec // jitter does not need crypto randomness
	}

	if p.multiplier < 1 {
		p.multiplier = 1
	}

	if p.maxWait <= 0 {
		p.maxWait = p.initial
	}

	p.jitter = math.Min(math.Max(p.jitter, 0), 1)

	return p
}

// backoff returns the wait before retry number n (1 for the first retry):
// initial * multiplier^(n-1), capped at maxWait, then spread by ±jitter.
func (p retryPolicy) backoff(n int) time.Duration {
	wait := float64(p.initial) * math.Pow(p.multiplier, float64(n-1))
	wait = math.Min(wait, float64(p.maxWait))

	if p.jitter > 0 {
		wait += wait * p.jitter * (p.rand()*2 - 1)
	}

	return time.Duration(wait)
}

// wait returns the delay before retry n, preferring a Retry-After hint from
// the previous response when it is shorter than maxWait.
func (p retryPolicy) wait(n int, hint time.Duration) time.Duration {
	if hint > 0 && hint <= p.maxWait {
		return hint
	}

	return p.backoff(n)
}

// retryableStatus reports statuses worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// isRetryableError reports transport errors worth another attempt. A
// per-attempt timeout is retryable; whether the caller's own deadline has
// passed is checked separately against its context.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}

	return 0
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package clients

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen blocks requests until the cool-down has elapsed.
	StateOpen

	// StateHalfOpen lets a limited number of probe requests through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// Timeout is the cool-down spent open before probing.
	Timeout time.Duration

	// HalfOpenLimit is both the number of probes allowed in flight and the
	// consecutive probe successes needed to close again.
	HalfOpenLimit int

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker stops calling an unhealthy downstream for a cool-down period.
//
//	closed    --MaxFailures consecutive failures--> open
//	open      --Timeout elapsed, next Allow-------> half-open
//	half-open --HalfOpenLimit successes-----------> closed
//	half-open --any failure-----------------------> open
type CircuitBreaker struct {
	maxFailures   int
	coolDown      time.Duration
	halfOpenLimit int
	now           func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	listener  func(from, to State)
}

// NewCircuitBreaker creates a closed breaker. Non-positive limits are raised to 1.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &CircuitBreaker{
		maxFailures:   max(cfg.MaxFailures, 1),
		coolDown:      cfg.Timeout,
		halfOpenLimit: max(cfg.HalfOpenLimit, 1),
		now:           now,
	}
}

// OnStateChange registers fn to be called after each transition.
// fn runs synchronously on the goroutine that caused the transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.listener = fn
}

// Allow reports whether a request may proceed. A true result must be
// followed by exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var notify func()

	allowed := false

	switch cb.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.coolDown {
			notify = cb.transition(StateHalfOpen)
			cb.inFlight = 1
			allowed = true
		}

	case StateHalfOpen:
		if cb.inFlight < cb.halfOpenLimit {
			cb.inFlight++
			allowed = true
		}
	}

	cb.mu.Unlock()
	run(notify)

	return allowed
}

// RecordSuccess reports a healthy response.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var notify func()

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.inFlight = max(cb.inFlight-1, 0)
		cb.successes++

		if cb.successes >= cb.halfOpenLimit {
			notify = cb.transition(StateClosed)
		}
	}

	cb.mu.Unlock()
	run(notify)
}

// RecordFailure reports a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var notify func()

	switch cb.state {
	case StateClosed:
		cb.failures++

		if cb.failures >= cb.maxFailures {
			notify = cb.transition(StateOpen)
		}

	case StateHalfOpen:
		notify = cb.transition(StateOpen)

	case StateOpen:
		// A request allowed before the circuit opened finished late.
		cb.openedAt = cb.now()
	}

	cb.mu.Unlock()
	run(notify)
}

// Release gives back a slot taken by Allow for a request that ended without
// telling anything about the downstream, such as one the caller canceled.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.inFlight = max(cb.inFlight-1, 0)
	}
}

// State returns the current state without advancing it. An open breaker
// whose cool-down has elapsed still reports open until the next Allow.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// transition moves to next and resets the counters. It returns the pending
// listener call, to be run once mu is released. Caller must hold mu.
func (cb *CircuitBreaker) transition(next State) func() {
	from := cb.state
	if from == next {
		return nil
	}

	cb.state = next
	cb.failures = 0
	cb.successes = 0
	cb.inFlight = 0

	if next == StateOpen {
		cb.openedAt = cb.now()
	}

	if cb.listener == nil {
		return nil
	}

	listener := cb.listener

	return func() { listener(from, next) }
}

func run(fn func()) {
	if fn != nil {
		fn()
	}
}

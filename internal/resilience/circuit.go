// Package resilience guards underlying attribute calls with a circuit
// breaker, retries and a concurrency bulkhead.
package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

// State is the state of a circuit breaker.
type State int32

const (
	StateClosed State = iota
	StateOpen
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

// CircuitBreaker stops calling a failing attribute until it has had time to
// recover.
type CircuitBreaker struct {
	name string

	failureThreshold    int
	successThreshold    int
	openDuration        time.Duration
	halfOpenMaxRequests int

	state atomic.Int32

	mu               sync.Mutex
	consecutiveFails int
	consecutiveSuccs int
	halfOpenRequests int
	openedAt         time.Time
	now              func() time.Time

	onStateChange func(name string, from, to State)
}

// transition is applied by the caller after the mutex is released so the
// callback may read breaker state.
type transition struct {
	name     string
	from, to State
	callback func(name string, from, to State)
}

func (t *transition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.name, t.from, t.to)
	}
}

// NewCircuitBreaker creates a breaker for the attribute called name.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                name,
		failureThreshold:    cfg.FailureThreshold,
		successThreshold:    cfg.SuccessThreshold,
		openDuration:        cfg.OpenDuration,
		halfOpenMaxRequests: cfg.HalfOpenMaxRequests,
		now:                 time.Now,
	}
	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 2
	}
	if cb.openDuration <= 0 {
		cb.openDuration = 30 * time.Second
	}
	if cb.halfOpenMaxRequests <= 0 {
		cb.halfOpenMaxRequests = 3
	}
	cb.state.Store(int32(StateClosed))
	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	if !cb.Allow() {
		return nil, fmt.Errorf("%w: %s", types.ErrCircuitOpen, cb.name)
	}

	v, err := fn()
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return v, err
}

// Allow reports whether a call may proceed. An open circuit turns half-open
// once the open duration has passed.
func (cb *CircuitBreaker) Allow() bool {
	switch State(cb.state.Load()) {
	case StateOpen:
		var t *transition
		allowed := false

		cb.mu.Lock()
		if cb.now().Sub(cb.openedAt) >= cb.openDuration {
			t = cb.transitionTo(StateHalfOpen)
			cb.halfOpenRequests = 1
			allowed = true
		}
		cb.mu.Unlock()

		t.invoke()
		return allowed

	case StateHalfOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.halfOpenRequests >= cb.halfOpenMaxRequests {
			return false
		}
		cb.halfOpenRequests++
		return true

	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	var t *transition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails = 0
	case StateHalfOpen:
		cb.consecutiveSuccs++
		if cb.consecutiveSuccs >= cb.successThreshold {
			t = cb.transitionTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	t.invoke()
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	var t *transition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.failureThreshold {
			t = cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		t = cb.transitionTo(StateOpen)
	}
	cb.mu.Unlock()

	t.invoke()
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(to State) *transition {
	from := State(cb.state.Load())
	if from == to {
		return nil
	}

	switch to {
	case StateClosed:
		cb.consecutiveFails = 0
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0
	case StateOpen:
		cb.openedAt = cb.now()
		cb.consecutiveSuccs = 0
	case StateHalfOpen:
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0
	}
	cb.state.Store(int32(to))

	if cb.onStateChange == nil {
		return nil
	}
	return &transition{name: cb.name, from: from, to: to, callback: cb.onStateChange}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State { return State(cb.state.Load()) }

// IsOpen reports whether the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == StateOpen }

// SetOnStateChange registers a callback run after every transition.
func (cb *CircuitBreaker) SetOnStateChange(fn func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFails = 0
	cb.consecutiveSuccs = 0
	cb.halfOpenRequests = 0
	cb.state.Store(int32(StateClosed))
}

// CircuitStats is a snapshot of breaker counters.
type CircuitStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
}

// Stats returns current circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitStats{
		State:            cb.State(),
		ConsecutiveFails: cb.consecutiveFails,
		ConsecutiveSuccs: cb.consecutiveSuccs,
		HalfOpenRequests: cb.halfOpenRequests,
	}
}

package resilience

import (
	"context"

	"github.com/LavishGent/propkit/internal/config"
)

// Policy combines the patterns enabled in the configuration. Disabled
// patterns are nil and skipped.
type Policy struct {
	name     string
	breaker  *CircuitBreaker
	retry    *Retry
	bulkhead *Bulkhead
}

// NewPolicy creates the policy for the attribute called name.
func NewPolicy(name string, cfg *config.Config) *Policy {
	p := &Policy{name: name}
	if cfg == nil {
		return p
	}
	if cfg.CircuitBreaker.Enabled {
		p.breaker = NewCircuitBreaker(name, cfg.CircuitBreaker)
	}
	if cfg.Retry.Enabled {
		p.retry = NewRetry(cfg.Retry)
	}
	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	}
	return p
}

// ExecuteWithResult runs fn as bulkhead -> retry -> circuit breaker -> fn,
// so every attempt counts toward the circuit.
func (p *Policy) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	call := fn
	if p.breaker != nil {
		inner := call
		call = func(ctx context.Context) (any, error) {
			return p.breaker.Execute(func() (any, error) { return inner(ctx) })
		}
	}
	if p.retry != nil {
		inner := call
		call = func(ctx context.Context) (any, error) {
			return p.retry.Execute(ctx, inner)
		}
	}
	if p.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) (any, error) {
			return p.bulkhead.Execute(ctx, inner)
		}
	}
	return call(ctx)
}

// Execute is ExecuteWithResult for calls without a result.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := p.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Name returns the policy name.
func (p *Policy) Name() string { return p.name }

// CircuitBreaker returns nil when the breaker is disabled.
func (p *Policy) CircuitBreaker() *CircuitBreaker { return p.breaker }

// Retry returns nil when retries are disabled.
func (p *Policy) Retry() *Retry { return p.retry }

// Bulkhead returns nil when the bulkhead is disabled.
func (p *Policy) Bulkhead() *Bulkhead { return p.bulkhead }

// CircuitState reports StateClosed when the breaker is disabled.
func (p *Policy) CircuitState() State {
	if p.breaker == nil {
		return StateClosed
	}
	return p.breaker.State()
}

// SetOnCircuitStateChange registers a transition callback on the breaker.
func (p *Policy) SetOnCircuitStateChange(fn func(name string, from, to State)) {
	if p.breaker != nil {
		p.breaker.SetOnStateChange(fn)
	}
}

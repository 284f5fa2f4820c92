package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

// Retry repeats failed underlying calls with exponential backoff. Errors the
// library raised itself are never retried.
type Retry struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         bool

	retries  atomic.Int64
	success  atomic.Int64
	failures atomic.Int64
}

// NewRetry creates a retry policy from the given configuration.
func NewRetry(cfg config.RetryConfig) *Retry {
	r := &Retry{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		jitter:         cfg.Jitter,
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 3
	}
	if r.initialBackoff <= 0 {
		r.initialBackoff = 100 * time.Millisecond
	}
	if r.maxBackoff <= 0 {
		r.maxBackoff = 2 * time.Second
	}
	if r.multiplier <= 0 {
		r.multiplier = 2.0
	}
	return r
}

// Execute runs fn until it succeeds, fails with a final error, the attempts
// run out or ctx is done.
func (r *Retry) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := fn(ctx)
		if err == nil {
			r.success.Add(1)
			return v, nil
		}
		lastErr = err

		if !types.IsRetryable(err) || attempt == r.maxAttempts {
			break
		}

		r.retries.Add(1)
		timer := time.NewTimer(r.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	r.failures.Add(1)
	return nil, lastErr
}

func (r *Retry) backoff(attempt int) time.Duration {
	d := float64(r.initialBackoff) * math.Pow(r.multiplier, float64(attempt-1))
	if d > float64(r.maxBackoff) {
		d = float64(r.maxBackoff)
	}
	// +/-25%
	if r.jitter {
		spread := d * 0.25
		d += rand.Float64()*2*spread - spread
	}
	return time.Duration(d)
}

// Stats returns the number of retries, successful and failed executions.
func (r *Retry) Stats() (retries, success, failures int64) {
	return r.retries.Load(), r.success.Load(), r.failures.Load()
}

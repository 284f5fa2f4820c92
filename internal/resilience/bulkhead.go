package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

// Bulkhead bounds the number of concurrent underlying calls. Callers beyond
// the limit wait in a bounded queue for at most the acquire timeout.
type Bulkhead struct {
	maxConcurrent  int
	maxQueue       int
	acquireTimeout time.Duration
	sem            *semaphore.Weighted

	active   atomic.Int32
	queued   atomic.Int32
	rejected atomic.Int64
	executed atomic.Int64
}

// NewBulkhead creates a bulkhead from the given configuration.
func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	b := &Bulkhead{
		maxConcurrent:  cfg.MaxConcurrent,
		maxQueue:       cfg.MaxQueue,
		acquireTimeout: cfg.AcquireTimeout,
	}
	if b.maxConcurrent <= 0 {
		b.maxConcurrent = 8
	}
	if b.maxQueue <= 0 {
		b.maxQueue = 16
	}
	if b.acquireTimeout <= 0 {
		b.acquireTimeout = 100 * time.Millisecond
	}
	b.sem = semaphore.NewWeighted(int64(b.maxConcurrent))
	return b
}

// Execute runs fn once a slot is free.
func (b *Bulkhead) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	b.active.Add(1)
	defer b.active.Add(-1)

	v, err := fn(ctx)
	b.executed.Add(1)
	return v, err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		return nil
	}

	if int(b.queued.Add(1)) > b.maxQueue {
		b.queued.Add(-1)
		b.rejected.Add(1)
		return types.ErrBulkheadFull
	}
	defer b.queued.Add(-1)

	wait, cancel := context.WithTimeout(ctx, b.acquireTimeout)
	defer cancel()

	if err := b.sem.Acquire(wait, 1); err != nil {
		b.rejected.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return types.ErrBulkheadTimeout
		}
		return err
	}
	return nil
}

// BulkheadStats is a snapshot of bulkhead counters.
type BulkheadStats struct {
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	Executed      int64
	Rejected      int64
}

// Stats returns current bulkhead statistics.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		MaxConcurrent: b.maxConcurrent,
		MaxQueue:      b.maxQueue,
		Active:        int(b.active.Load()),
		Queued:        int(b.queued.Load()),
		Executed:      b.executed.Load(),
		Rejected:      b.rejected.Load(),
	}
}

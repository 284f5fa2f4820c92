package layers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/types"
)

// LockKind selects how a lock waits.
type LockKind int

const (
	// LockAuto waits like LockSync for blocking descriptors and like
	// LockSuspend for context-aware ones.
	LockAuto LockKind = iota
	// LockSync waits regardless of the caller's context, bounded only by
	// the timeout.
	LockSync
	// LockSuspend gives up when the caller's context is done.
	LockSuspend
)

func (k LockKind) String() string {
	switch k {
	case LockAuto:
		return "auto"
	case LockSync:
		return "sync"
	case LockSuspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// Scope selects which accesses share one lock.
type Scope int

const (
	// ScopeKey serializes accesses to the same key of one owner.
	ScopeKey Scope = iota
	// ScopeAttribute serializes all accesses to the attribute of one owner.
	ScopeAttribute
	// ScopeInstance serializes instance-scoped lock layers across all
	// attributes of one owner.
	ScopeInstance
)

func (s Scope) String() string {
	switch s {
	case ScopeKey:
		return "key"
	case ScopeAttribute:
		return "attribute"
	case ScopeInstance:
		return "instance"
	default:
		return "unknown"
	}
}

const instanceLock = "lock"

// Lock holds a mutual exclusion lock around the inner chain.
//
// Goroutines carry no identity, so re-entry is recognized through the
// context instead: an underlying function that passes its context on to a
// nested access of the same lock enters without waiting. A nested access
// made with any other context, including every blocking Get and Set, waits
// for the outer one and fails with a lock timeout when a timeout is set.
type Lock struct {
	chain.Nop
	kind    LockKind
	timeout time.Duration
	scope   Scope
}

// LockOption configures a Lock layer.
type LockOption func(*Lock)

// WithLockKind selects how the lock waits.
func WithLockKind(k LockKind) LockOption {
	return func(l *Lock) { l.kind = k }
}

// WithLockTimeout bounds the wait. Zero uses the owner's default, negative
// waits indefinitely.
func WithLockTimeout(d time.Duration) LockOption {
	return func(l *Lock) { l.timeout = d }
}

// WithLockScope selects which accesses share the lock.
func WithLockScope(s Scope) LockOption {
	return func(l *Lock) { l.scope = s }
}

// NewLock creates a key-scoped lock that waits according to the descriptor mode.
func NewLock(opts ...LockOption) *Lock {
	l := &Lock{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (*Lock) Kind() chain.Kind { return chain.KindLock }

func newSemaphore() any { return semaphore.NewWeighted(1) }

// heldKey marks a context whose access holds sem.
type heldKey struct{ sem *semaphore.Weighted }

func (l *Lock) semaphore(a *chain.Access) *semaphore.Weighted {
	switch l.scope {
	case ScopeAttribute:
		return a.AttrState(newSemaphore).(*semaphore.Weighted)
	case ScopeInstance:
		return a.Root().Namespace(instanceLock, newSemaphore).(*semaphore.Weighted)
	default:
		return a.State(newSemaphore).(*semaphore.Weighted)
	}
}

func (l *Lock) effectiveKind(a *chain.Access) LockKind {
	if l.kind != LockAuto {
		return l.kind
	}
	if a.Descriptor().Mode() == types.ModeContext {
		return LockSuspend
	}
	return LockSync
}

func (l *Lock) timeoutFor(a *chain.Access) time.Duration {
	switch {
	case l.timeout < 0:
		return 0
	case l.timeout == 0:
		return a.Config().Lock.Timeout
	default:
		return l.timeout
	}
}

// Acquire takes the lock. The returned release must be called exactly once.
func (l *Lock) Acquire(ctx context.Context, a *chain.Access) (func(), error) {
	sem := l.semaphore(a)
	held := heldKey{sem}
	if ctx.Value(held) != nil {
		return func() {}, nil
	}
	if !sem.TryAcquire(1) {
		if err := l.wait(ctx, a, sem); err != nil {
			return nil, err
		}
	}
	a.WithValue(held, true)
	return func() { sem.Release(1) }, nil
}

func (l *Lock) wait(ctx context.Context, a *chain.Access, sem *semaphore.Weighted) error {
	kind := l.effectiveKind(a)
	wait := ctx
	if kind == LockSync {
		wait = context.Background()
	}
	timeout := l.timeoutFor(a)
	if timeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(wait, timeout)
		defer cancel()
	}

	if err := sem.Acquire(wait, 1); err != nil {
		if kind == LockSuspend && ctx.Err() != nil {
			return ctx.Err()
		}
		return a.Error(types.ErrLockTimeout, chain.KindLock, fmt.Errorf("waited %s", timeout))
	}
	return nil
}

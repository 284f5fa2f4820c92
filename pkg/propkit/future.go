package propkit

import (
	"context"
	"errors"

	"github.com/LavishGent/propkit/internal/registry"
)

var errAsyncPanic = errors.New("propkit: async access panicked")

// Future is the pending result of an asynchronous access.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// submit runs fn on the owner's executor. Accesses submitted for one owner run
// one at a time in submission order.
func submit[T any](o Owner, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	root, err := registry.Lookup(o)
	if err != nil {
		var zero T
		f.resolve(zero, err)
		return f
	}
	root.Executor().Submit(func() {
		var v T
		err := errAsyncPanic
		defer func() { f.resolve(v, err) }()
		v, err = fn()
	})
	return f
}

// GetAsync runs a get on o's executor.
func (p *Property[O, T]) GetAsync(ctx context.Context, o O) *Future[T] {
	return submit(o, func() (T, error) { return p.GetContext(ctx, o) })
}

// SetAsync runs a set on o's executor.
func (p *Property[O, T]) SetAsync(ctx context.Context, o O, v T) *Future[struct{}] {
	return submit(o, func() (struct{}, error) { return struct{}{}, p.SetContext(ctx, o, v) })
}

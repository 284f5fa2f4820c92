package registry

import (
	"sync"
	"sync/atomic"
)

// Executor runs submitted functions one at a time in submission order. The
// worker goroutine exists only while work is queued.
type Executor struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	pending atomic.Int64
}

// Submit queues fn.
func (e *Executor) Submit(fn func()) {
	e.pending.Add(1)

	e.mu.Lock()
	e.queue = append(e.queue, fn)
	start := !e.running
	e.running = true
	e.mu.Unlock()

	if start {
		go e.drain()
	}
}

// Pending returns the number of queued or running functions.
func (e *Executor) Pending() int {
	return int(e.pending.Load())
}

func (e *Executor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(fn)
	}
}

func (e *Executor) run(fn func()) {
	defer e.pending.Add(-1)
	defer func() { _ = recover() }()
	fn()
}

package core

import (
	"context"
	"sync"
)

// Future is a one-shot result cell written by the worker that executes a
// task. Readers may wait on it from any goroutine.
type Future struct {
	name string
	once sync.Once
	done chan struct{}
	val  any
	err  error
}

// NewFuture creates an unresolved future for the named task.
func NewFuture(name string) *Future {
	return &Future{name: name, done: make(chan struct{})}
}

// Name returns the task name the future belongs to.
func (f *Future) Name() string { return f.name }

// Resolve stores the result. Only the first call has an effect.
func (f *Future) Resolve(v any, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether a result is available without blocking.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

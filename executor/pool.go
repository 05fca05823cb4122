package executor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/turnmesh/core"
)

var (
	errNoOperation = errors.New("task has no operation")
	errDetached    = errors.New("pool detached")
)

// Completion is the raw result of one task execution.
type Completion struct {
	Name    string
	Value   any
	Err     error
	Elapsed time.Duration
}

// Pool runs submitted tasks, one goroutine each, under a shared context.
// Submit, Next, InFlight and Stop may be called from the coordinating
// goroutine while workers run; Next must not be called concurrently.
type Pool struct {
	exec   *Executor
	phase  string
	ctx    context.Context
	cancel context.CancelFunc

	results     chan Completion
	stopped     chan struct{}
	releaseOnce sync.Once

	mu       sync.Mutex
	inflight map[string]*core.Future
}

// NewPool creates a pool whose workers observe ctx. The deadline of ctx is
// the phase deadline.
func (e *Executor) NewPool(ctx context.Context, phase string) *Pool {
	pctx, cancel := context.WithCancel(ctx)

	return &Pool{
		exec:     e,
		phase:    phase,
		ctx:      pctx,
		cancel:   cancel,
		results:  make(chan Completion),
		stopped:  make(chan struct{}),
		inflight: make(map[string]*core.Future),
	}
}

// Phase returns the phase label the pool was created for.
func (p *Pool) Phase() string { return p.phase }

// Context returns the pool's context, which is done once the phase ends.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit starts t on its own goroutine and returns a future for its result.
// The future resolves even after the pool is stopped.
func (p *Pool) Submit(t core.Task, in core.Inputs) *core.Future {
	f := core.NewFuture(t.Name)

	p.mu.Lock()
	p.inflight[t.Name] = f
	p.mu.Unlock()

	go p.work(t, in, f)

	return f
}

func (p *Pool) work(t core.Task, in core.Inputs, f *core.Future) {
	start := time.Now()

	ctx, cancel := p.exec.taskContext(p.ctx, t)
	defer cancel()

	v, err := invoke(ctx, t, in)
	f.Resolve(v, err)

	select {
	case p.results <- Completion{Name: t.Name, Value: v, Err: err, Elapsed: time.Since(start)}:
	case <-p.stopped:
	}
}

// invoke runs the operation on a separate goroutine so that an operation
// ignoring ctx is abandoned, not waited for, once ctx is done.
func invoke(ctx context.Context, t core.Task, in core.Inputs) (any, error) {
	if t.Run == nil {
		return nil, errNoOperation
	}

	type result struct {
		v   any
		err error
	}

	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: &core.PanicError{Task: t.Name, Value: r}}
			}
		}()

		v, err := t.Run(ctx, in)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next returns the first completion among the outstanding tasks. It returns
// the context error once the pool deadline passes or the pool is stopped.
func (p *Pool) Next() (Completion, error) {
	// A completion that is already waiting wins over an expired deadline.
	select {
	case c := <-p.results:
		p.done(c.Name)
		return c, nil
	default:
	}

	if err := p.ctx.Err(); err != nil {
		return Completion{}, err
	}

	select {
	case c := <-p.results:
		p.done(c.Name)
		return c, nil
	case <-p.stopped:
		return Completion{}, errDetached
	case <-p.ctx.Done():
		return Completion{}, p.ctx.Err()
	}
}

func (p *Pool) done(name string) {
	p.mu.Lock()
	delete(p.inflight, name)
	p.mu.Unlock()
}

// Len returns the number of submitted tasks whose completion has not been
// returned by Next.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// InFlight returns the names of outstanding tasks in sorted order.
func (p *Pool) InFlight() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.inflight))
	for n := range p.inflight {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// Future returns the future of an outstanding task.
func (p *Pool) Future(name string) (*core.Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.inflight[name]
	return f, ok
}

// Detach stops collecting completions without cancelling in-flight
// operations. Their futures still resolve, bounded by the pool's parent
// context. Next returns an error afterwards.
func (p *Pool) Detach() {
	p.releaseOnce.Do(func() { close(p.stopped) })
}

// Stop signals every in-flight operation to stop and releases workers that
// are waiting to report. It is idempotent and never blocks.
func (p *Pool) Stop() {
	p.Detach()
	p.cancel()
}

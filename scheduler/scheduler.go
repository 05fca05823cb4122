// Package scheduler executes a DAG of tasks (the annotation pipeline) in
// rounds on top of the executor: whenever a task completes, dependents whose
// dependencies are all resolved are submitted. A failing task never blocks
// its siblings; dependents run against its default value. Tasks still
// unresolved at the deadline get their defaults synchronously.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/executor"
	"github.com/hupe1980/turnmesh/logging"
)

var errDependencyFailed = errors.New("dependency failed")

// Options configures a Scheduler.
type Options struct {
	// Phase labels logs and metrics. Defaults to "annotation".
	Phase string
	// Slow lists tasks whose results are rarely needed downstream. When only
	// slow tasks remain, the scheduler stops waiting and hands back their
	// in-flight futures as Deferred outcomes.
	Slow []string
}

// Scheduler runs dependency graphs.
type Scheduler struct {
	exec   *executor.Executor
	logger logging.Logger
	phase  string
	slow   map[string]bool
}

// New creates a Scheduler backed by exec.
func New(exec *executor.Executor, optFns ...func(o *Options)) *Scheduler {
	opts := Options{Phase: "annotation"}

	for _, fn := range optFns {
		fn(&opts)
	}

	slow := make(map[string]bool, len(opts.Slow))
	for _, n := range opts.Slow {
		slow[n] = true
	}

	return &Scheduler{
		exec:   exec,
		logger: exec.Logger(),
		phase:  opts.Phase,
		slow:   slow,
	}
}

type readiness int

const (
	waiting readiness = iota
	ready
	blocked
)

func readinessOf(t core.Task, results core.Results) readiness {
	state := ready
	for _, dep := range t.Dependencies {
		o, ok := results[dep]
		switch {
		case !ok:
			state = waiting
		case o.Kind == core.OutcomeFailed:
			return blocked
		}
	}
	return state
}

// Run executes g until every task has an outcome or ctx is done, and returns
// an outcome for every task in g.
func (s *Scheduler) Run(ctx context.Context, g *Graph) core.Results {
	start := time.Now()
	results := make(core.Results, g.Len())
	if g.Len() == 0 {
		return results
	}

	order := g.TopologicalOrder()
	submitted := make(map[string]bool, g.Len())

	p := s.exec.NewPool(ctx, s.phase)

	released := false

loop:
	for {
		// One pass in topological order settles failure propagation and
		// submits every task whose dependencies are resolved.
		for _, name := range order {
			if _, done := results[name]; done || submitted[name] {
				continue
			}

			t, _ := g.Task(name)
			switch readinessOf(t, results) {
			case blocked:
				results[name] = core.Failed(fmt.Errorf("%w: %s", errDependencyFailed, name))
			case ready:
				if p.Context().Err() != nil {
					break loop
				}
				p.Submit(t, results.Inputs(t.Dependencies...))
				submitted[name] = true
			}
		}

		if len(results) == g.Len() || p.Len() == 0 {
			break
		}

		if s.onlySlowRemain(order, results) {
			released = true
			break
		}

		c, err := p.Next()
		if err != nil {
			break
		}

		t, _ := g.Task(c.Name)
		results[c.Name] = s.settle(t, c, results)
	}

	if released {
		p.Detach()
	} else {
		p.Stop()
	}

	s.finish(order, g, p, results, released)

	for _, name := range order {
		s.exec.Record(p.Phase(), name, results[name])
	}

	s.logger.Debug("dependency graph resolved",
		"phase", s.phase,
		"tasks", g.Len(),
		"duration", time.Since(start),
		"early_release", released,
	)

	return results
}

// settle turns a completion into Success, UsedDefault or Failed.
func (s *Scheduler) settle(t core.Task, c executor.Completion, results core.Results) core.Outcome {
	if c.Err == nil {
		return core.Success(c.Value, c.Elapsed)
	}

	v, err := t.DefaultValue(results.Inputs(t.Dependencies...))
	if err != nil {
		return core.Failed(errors.Join(c.Err, err))
	}

	o := core.UsedDefault(v, c.Err)
	o.Elapsed = c.Elapsed

	return o
}

// finish resolves every task still lacking an outcome after the deadline or
// an early release.
func (s *Scheduler) finish(order []string, g *Graph, p *executor.Pool, results core.Results, released bool) {
	for _, name := range order {
		if _, done := results[name]; done {
			continue
		}

		t, _ := g.Task(name)
		if readinessOf(t, results) == blocked {
			results[name] = core.Failed(fmt.Errorf("%w: %s", errDependencyFailed, name))
			continue
		}

		in := results.Inputs(t.Dependencies...)
		v, err := t.DefaultValue(in)

		if released {
			if f, ok := p.Future(name); ok {
				results[name] = core.Deferred(f, v)
				continue
			}
		}

		if err != nil {
			results[name] = core.Failed(err)
			continue
		}
		results[name] = core.UsedDefault(v, context.DeadlineExceeded)
	}
}

func (s *Scheduler) onlySlowRemain(order []string, results core.Results) bool {
	if len(s.slow) == 0 {
		return false
	}
	for _, name := range order {
		if _, done := results[name]; done {
			continue
		}
		if !s.slow[name] {
			return false
		}
	}
	return true
}

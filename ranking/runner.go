package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/executor"
	"github.com/hupe1980/turnmesh/logging"
)

// RunOptions controls early cancellation and submission order for one Run.
type RunOptions struct {
	// Protected producers must finish before early cancellation may happen.
	Protected []string
	// ProtectedUnlessNoFollowUp producers may only be cancelled early when the
	// decisive candidate does not need a follow-up prompt.
	ProtectedUnlessNoFollowUp []string
	// Order lists producers to submit first. It only shortens the expected
	// time to a decision; results do not depend on it.
	Order []string
}

// Runner is the priority runner for candidate producers.
type Runner struct {
	exec   *executor.Executor
	logger logging.Logger
}

// New creates a Runner backed by exec.
func New(exec *executor.Executor) *Runner {
	return &Runner{exec: exec, logger: exec.Logger()}
}

// Run executes tasks, each expected to yield a *core.Candidate, until all
// finish, ctx is done, or a decisive candidate allows cancelling the rest.
// Every task gets an outcome: Success, UsedDefault (operation error with a
// default), Cancelled (stopped early) or Missing (timed out or never started).
func (r *Runner) Run(ctx context.Context, phase string, tasks []core.Task, opts RunOptions) core.Results {
	start := time.Now()

	ordered := submissionOrder(tasks, opts.Order)
	results := make(core.Results, len(ordered))

	byName := make(map[string]core.Task, len(ordered))
	for _, t := range ordered {
		byName[t.Name] = t
	}

	protected := toSet(opts.Protected)
	protectedUnlessNoFollowUp := toSet(opts.ProtectedUnlessNoFollowUp)

	p := r.exec.NewPool(ctx, phase)
	defer p.Stop()

	for _, t := range ordered {
		if p.Context().Err() != nil {
			break
		}
		p.Submit(t, core.Inputs{})
	}

	var best *core.Candidate

	for p.Len() > 0 {
		c, err := p.Next()
		if err != nil {
			break
		}

		o := settle(byName[c.Name], c)
		results[c.Name] = o

		if cand, ok := core.AsCandidate(o.Value); ok && o.OK() && cand.Rankable() && cand.Priority.IsDecisive() {
			if best == nil || cand.Priority > best.Priority {
				best = cand
			}
		}

		if best == nil {
			continue
		}

		running := p.InFlight()
		if len(running) == 0 || !mayCancel(running, best, protected, protectedUnlessNoFollowUp) {
			continue
		}

		p.Stop()
		for _, name := range running {
			results[name] = core.Cancelled()
		}
		r.exec.Metrics().IncEarlyCancel(p.Phase())
		r.logger.Debug("early cancellation",
			"phase", p.Phase(),
			"winner", best.Producer,
			"priority", best.Priority.String(),
			"cancelled", running,
		)
		break
	}

	cause := ctx.Err()
	if cause == nil {
		cause = context.DeadlineExceeded
	}

	for _, t := range ordered {
		if _, done := results[t.Name]; !done {
			results[t.Name] = core.Missing(fmt.Errorf("producer %s: %w", t.Name, cause))
		}
	}

	for _, t := range ordered {
		r.exec.Record(phase, t.Name, results[t.Name])
	}

	r.exec.Metrics().ObservePhase(phase, time.Since(start))

	return results
}

// mayCancel reports whether the still-running producers may be abandoned in
// favour of best.
func mayCancel(running []string, best *core.Candidate, protected, protectedUnlessNoFollowUp map[string]bool) bool {
	for _, name := range running {
		if protected[name] {
			return false
		}
		if protectedUnlessNoFollowUp[name] && best.NeedsFollowUp {
			return false
		}
	}
	return true
}

// settle converts a completion into an outcome. Timeouts stay Missing; other
// operation errors fall back to the task's default when it has one.
func settle(t core.Task, c executor.Completion) core.Outcome {
	if c.Err == nil {
		return core.Success(c.Value, c.Elapsed)
	}

	if errors.Is(c.Err, context.DeadlineExceeded) || errors.Is(c.Err, context.Canceled) {
		return core.Missing(c.Err)
	}

	v, err := t.DefaultValue(core.Inputs{})
	if err != nil {
		if errors.Is(err, core.ErrNoDefault) {
			return core.Missing(c.Err)
		}
		return core.Missing(errors.Join(c.Err, err))
	}

	o := core.UsedDefault(v, c.Err)
	o.Elapsed = c.Elapsed

	return o
}

// submissionOrder puts the hinted producers first and drops duplicate names.
func submissionOrder(tasks []core.Task, hints []string) []core.Task {
	byName := make(map[string]core.Task, len(tasks))
	var names []string

	for _, t := range tasks {
		if _, dup := byName[t.Name]; dup {
			continue
		}
		byName[t.Name] = t
		names = append(names, t.Name)
	}

	ordered := make([]core.Task, 0, len(names))
	taken := make(map[string]bool, len(names))

	for _, h := range hints {
		if t, ok := byName[h]; ok && !taken[h] {
			ordered = append(ordered, t)
			taken[h] = true
		}
	}

	for _, n := range names {
		if !taken[n] {
			ordered = append(ordered, byName[n])
		}
	}

	return ordered
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

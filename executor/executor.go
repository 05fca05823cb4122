package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/metrics"
)

// Options configures an Executor.
type Options struct {
	// Logger receives task failure reports. Defaults to NoOp.
	Logger logging.Logger
	// Metrics records task outcomes. May be nil.
	Metrics *metrics.Collector
	// DisableTimeouts ignores per-task timeouts. Phase deadlines still come
	// from the caller's context, so callers disabling timeouts globally should
	// also stop setting deadlines.
	DisableTimeouts bool
}

// Executor creates worker pools and records task outcomes.
type Executor struct {
	logger          logging.Logger
	metrics         *metrics.Collector
	disableTimeouts bool
}

// New creates an Executor.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		logger:          logging.OrNoOp(opts.Logger),
		metrics:         opts.Metrics,
		disableTimeouts: opts.DisableTimeouts,
	}
}

// Logger returns the executor's logger.
func (e *Executor) Logger() logging.Logger { return e.logger }

// Metrics returns the executor's collector, which may be nil.
func (e *Executor) Metrics() *metrics.Collector { return e.metrics }

// Record logs and counts one task outcome for the given phase.
func (e *Executor) Record(phase, task string, o core.Outcome) {
	e.metrics.IncOutcome(phase, task, o.Kind.String())

	switch {
	case o.Kind == core.OutcomeSuccess:
		e.logger.Debug("task succeeded", "phase", phase, "task", task, "duration", o.Elapsed)
	case o.Kind == core.OutcomeCancelled:
		e.logger.Debug("task cancelled", "phase", phase, "task", task)
	case errors.Is(o.Err, core.ErrTaskPanic):
		e.logger.Error("task panicked", "phase", phase, "task", task, "outcome", o.Kind.String(), "error", o.Err)
	case o.Err != nil:
		e.logger.Warn("task failed", "phase", phase, "task", task, "outcome", o.Kind.String(), "error", o.Err)
	default:
		e.logger.Debug("task settled", "phase", phase, "task", task, "outcome", o.Kind.String())
	}
}

// RunOptions tunes a single Run call.
type RunOptions struct {
	// SubstituteDefaults turns failed or late tasks into UsedDefault outcomes
	// instead of Missing.
	SubstituteDefaults bool
}

// Run executes independent tasks (dependencies are ignored) until all finish
// or ctx is done. Every task gets an outcome: Success, or Missing /
// UsedDefault for tasks that errored, panicked or missed the deadline.
func (e *Executor) Run(ctx context.Context, phase string, tasks []core.Task, optFns ...func(o *RunOptions)) core.Results {
	var opts RunOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	results := make(core.Results, len(tasks))

	p := e.NewPool(ctx, phase)
	defer p.Stop()

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if seen[t.Name] {
			e.logger.Warn("duplicate task skipped", "phase", phase, "task", t.Name)
			continue
		}
		seen[t.Name] = true

		if p.Context().Err() != nil {
			// Deadline passed before the task could be attempted.
			continue
		}
		p.Submit(t, core.Inputs{})
	}

	byName := make(map[string]core.Task, len(tasks))
	for _, t := range tasks {
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t
		}
	}

	for p.Len() > 0 {
		c, err := p.Next()
		if err != nil {
			break
		}
		results[c.Name] = settle(byName[c.Name], c, opts.SubstituteDefaults)
	}

	cause := ctx.Err()
	if cause == nil {
		cause = context.DeadlineExceeded
	}

	for name, t := range byName {
		if _, done := results[name]; done {
			continue
		}
		results[name] = fallback(t, fmt.Errorf("task %s: %w", name, cause), opts.SubstituteDefaults)
	}

	for name, o := range results {
		e.Record(phase, name, o)
	}

	return results
}

// settle converts a completion into an outcome.
func settle(t core.Task, c Completion, substitute bool) core.Outcome {
	if c.Err == nil {
		return core.Success(c.Value, c.Elapsed)
	}
	o := fallback(t, c.Err, substitute)
	o.Elapsed = c.Elapsed
	return o
}

func fallback(t core.Task, cause error, substitute bool) core.Outcome {
	if !substitute {
		return core.Missing(cause)
	}

	v, err := t.DefaultValue(core.Inputs{})
	if err != nil {
		return core.Missing(errors.Join(cause, err))
	}

	return core.UsedDefault(v, cause)
}

// taskContext derives the per-task context, bounded by t.Timeout unless timeouts are disabled.
func (e *Executor) taskContext(parent context.Context, t core.Task) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 || e.disableTimeouts {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, t.Timeout)
}

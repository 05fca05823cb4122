package core

import (
	"context"
	"sort"
	"time"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeMissing means the task produced no usable result: it was never
	// attempted, failed, or did not finish before the deadline.
	OutcomeMissing OutcomeKind = iota
	// OutcomeSuccess carries the operation's own value.
	OutcomeSuccess
	// OutcomeUsedDefault carries the task's default value.
	OutcomeUsedDefault
	// OutcomeCancelled means the task was deliberately stopped early.
	OutcomeCancelled
	// OutcomeFailed is the scheduler's last-resort marker: neither the
	// operation nor the default produced a value. Dependents are not run.
	OutcomeFailed
	// OutcomeDeferred means the scheduler released the task while it was
	// still in flight; its result may still arrive through the Future.
	OutcomeDeferred
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMissing:
		return "missing"
	case OutcomeSuccess:
		return "success"
	case OutcomeUsedDefault:
		return "used_default"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Outcome is the result of one task within one phase.
type Outcome struct {
	Kind    OutcomeKind
	Value   any
	Err     error
	Elapsed time.Duration

	future   *Future
	fallback any
}

// Success builds a successful outcome.
func Success(v any, elapsed time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: v, Elapsed: elapsed}
}

// UsedDefault builds an outcome carrying a default value. cause records why
// the default was needed and may be nil.
func UsedDefault(v any, cause error) Outcome {
	return Outcome{Kind: OutcomeUsedDefault, Value: v, Err: cause}
}

// Missing builds an outcome for a task without a result.
func Missing(cause error) Outcome {
	return Outcome{Kind: OutcomeMissing, Err: cause}
}

// Cancelled builds an outcome for a deliberately stopped task.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled, Err: context.Canceled}
}

// Failed builds the scheduler's last-resort outcome.
func Failed(cause error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: cause}
}

// Deferred builds an outcome that is still being computed. fallback is
// returned by Await if the future errors or ctx ends first.
func Deferred(f *Future, fallback any) Outcome {
	return Outcome{Kind: OutcomeDeferred, Value: fallback, future: f, fallback: fallback}
}

// OK reports whether the outcome carries a usable value.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeUsedDefault || o.Kind == OutcomeDeferred
}

// Await returns the outcome's value. For deferred outcomes it waits for the
// in-flight task, falling back to the default if it errors or ctx ends.
func (o Outcome) Await(ctx context.Context) any {
	if o.Kind != OutcomeDeferred || o.future == nil {
		return o.Value
	}

	v, err := o.future.Wait(ctx)
	if err != nil {
		return o.fallback
	}

	return v
}

// Results maps task names to their outcomes for one phase.
type Results map[string]Outcome

// Value returns the value of a task's outcome, if it carries one.
func (r Results) Value(name string) (any, bool) {
	o, ok := r[name]
	if !ok || !o.OK() {
		return nil, false
	}
	return o.Value, true
}

// Succeeded reports whether the named task finished with its own value.
func (r Results) Succeeded(name string) bool {
	return r[name].Kind == OutcomeSuccess
}

// Names returns the task names in sorted order.
func (r Results) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Count returns how many outcomes have the given kind.
func (r Results) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Inputs extracts the usable values of the named tasks.
func (r Results) Inputs(names ...string) Inputs {
	in := make(Inputs, len(names))
	for _, n := range names {
		if v, ok := r.Value(n); ok {
			in[n] = v
		}
	}
	return in
}

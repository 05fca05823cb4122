package core

import (
	"context"
	"time"
)

// Inputs is the read-only view of resolved dependency values handed to a
// Task's operation and default. Tasks run outside a dependency graph receive
// an empty Inputs.
type Inputs map[string]any

// Get returns the value recorded for a dependency and whether it exists.
func (in Inputs) Get(name string) (any, bool) {
	v, ok := in[name]
	return v, ok
}

// String returns a dependency value as string, or "" if absent or not a string.
func (in Inputs) String(name string) string {
	if s, ok := in[name].(string); ok {
		return s
	}
	return ""
}

// Operation is the work performed by a Task. ctx is the phase-scoped stop
// signal: it is cancelled when the phase gives up on the task (deadline,
// early cancellation). Implementations should check it between internal
// steps; a call that ignores it is abandoned and its result discarded.
type Operation func(ctx context.Context, in Inputs) (any, error)

// DefaultFunc computes the fallback value used whenever the operation fails
// or does not finish in time. It must be cheap and must not block.
type DefaultFunc func(in Inputs) any

// Task is a named unit of work. Dependencies are only honored by the
// dependency scheduler; other runners ignore them.
type Task struct {
	Name         string
	Dependencies []string
	Run          Operation
	// Default may be nil, in which case the scheduler marks the task Failed
	// instead of substituting a value.
	Default DefaultFunc
	// Timeout bounds a single execution. Zero means "until the phase deadline".
	Timeout time.Duration
}

// DefaultValue invokes the default function, converting a panic into an
// error so a misbehaving default can never take down the orchestrator.
func (t Task) DefaultValue(in Inputs) (v any, err error) {
	if t.Default == nil {
		return nil, ErrNoDefault
	}

	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &PanicError{Task: t.Name, Value: r}
		}
	}()

	return t.Default(in), nil
}

// Static returns a DefaultFunc that always yields v.
func Static(v any) DefaultFunc {
	return func(Inputs) any { return v }
}

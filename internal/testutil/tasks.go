package testutil

import (
	"context"
	"time"

	"github.com/hupe1980/turnmesh/core"
)

// ValueTask returns a task that yields v after delay, or stops early when
// its context ends. def becomes a static default when non-nil.
func ValueTask(name string, v any, delay time.Duration, def any, deps ...string) core.Task {
	t := core.Task{
		Name:         name,
		Dependencies: deps,
		Run: func(ctx context.Context, _ core.Inputs) (any, error) {
			if err := Sleep(ctx, delay); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	if def != nil {
		t.Default = core.Static(def)
	}
	return t
}

// ErrorTask returns a task whose operation fails with err.
func ErrorTask(name string, err error, def any, deps ...string) core.Task {
	t := core.Task{
		Name:         name,
		Dependencies: deps,
		Run: func(context.Context, core.Inputs) (any, error) {
			return nil, err
		},
	}
	if def != nil {
		t.Default = core.Static(def)
	}
	return t
}

// Sleep waits for d or until ctx ends, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

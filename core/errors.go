package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnTimeout reports that the overall turn deadline passed before a
	// response could be selected.
	ErrTurnTimeout = errors.New("turn deadline exceeded")

	// ErrExhaustedCandidates reports that every ranked candidate was rejected
	// by the safety checker (or no candidate was produced at all).
	ErrExhaustedCandidates = errors.New("no acceptable candidate")

	// ErrCycle reports a dependency cycle among tasks.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrUnknownDependency reports a dependency on a task that is not registered.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDuplicateTask reports two tasks sharing a name within one phase.
	ErrDuplicateTask = errors.New("duplicate task name")

	// ErrNoDefault reports a task that has no default function.
	ErrNoDefault = errors.New("task has no default")

	// ErrStateVersion reports a persisted state written with a different schema version.
	ErrStateVersion = errors.New("state version mismatch")

	// ErrTaskPanic is matched by errors.Is for every PanicError.
	ErrTaskPanic = errors.New("task panicked")
)

// PanicError wraps a value recovered from a panicking task operation or default.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Is makes errors.Is(err, ErrTaskPanic) succeed.
func (e *PanicError) Is(target error) bool { return target == ErrTaskPanic }

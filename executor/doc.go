// Package executor runs independent tasks concurrently under a shared
// deadline and collects whatever completes in time.
//
// Every submitted task gets its own goroutine. The pool's context is the
// phase-scoped stop signal: cancelling it (Stop, deadline) tells operations to
// wind down, but nothing is pre-empted. A task that keeps running past the
// deadline is abandoned and its eventual result discarded; the executor never
// waits for it.
//
// Two layers are provided:
//
//   - Pool: submit tasks incrementally and wait for the first of the
//     outstanding completions. The dependency scheduler and the priority
//     runner are built on it.
//   - Executor.Run: submit a fixed set of tasks and return an outcome for
//     each one, optionally substituting defaults for failures.
package executor

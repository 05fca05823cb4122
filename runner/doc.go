// Package runner drives an engine.Engine for live sessions.
//
// The engine itself is stateless between turns: it takes the previous
// snapshot and returns the next one. The Runner owns that loop. For each
// incoming utterance it loads the session's snapshot from a
// core.SnapshotStore, runs the turn, and then either saves the new snapshot
// or, when the session ended or the turn failed fatally, deletes it.
//
// # Responsibilities
//   - Snapshot persistence around each turn
//   - One turn at a time per session (ErrTurnInProgress otherwise)
//   - Turn tracking and cancellation by turn ID
//
// See runner.go for the operational details.
package runner

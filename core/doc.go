// Package core provides the foundational domain types and interfaces shared by
// every turnmesh component. It defines:
//
//   - Tasks (named units of work with an operation and a default)
//   - Outcomes (the per-task result of a scheduling phase) and Futures
//   - Candidates and PriorityLevel (competing responses and their ranking tier)
//   - State and Snapshot (producer-owned data carried across turns)
//   - Turn (the per-utterance context shared by all phases)
//   - Pluggable repositories for snapshots and remote response caching
//
// The package keeps scheduling, ranking and persistence implementations out of
// scope, exposing small interfaces so executors, stores and collaborators can
// be swapped without touching calling code.
package core

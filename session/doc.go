// Package session houses concrete implementations of core.SnapshotStore.
// The interface itself lives in the core package so the orchestrator and the
// runner never depend on a concrete backend; the wiring layer decides which
// implementation to instantiate.
package session

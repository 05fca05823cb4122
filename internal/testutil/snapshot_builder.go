package testutil

import (
	"time"

	"github.com/hupe1980/turnmesh/core"
)

// SnapshotBuilder helps construct snapshots with fluent chaining for tests.
// Example:
//
//	snap := NewSnapshotBuilder(3).Responder("news").State("news", 1, map[string]int{"n": 2}).Build()
type SnapshotBuilder struct {
	snap core.Snapshot
}

// NewSnapshotBuilder creates a builder for the snapshot written by turn index.
func NewSnapshotBuilder(index int) *SnapshotBuilder {
	return &SnapshotBuilder{snap: core.Snapshot{
		TurnIndex: index,
		States:    map[string]core.State{},
		Updated:   time.Now(),
	}}
}

// Responder sets the active responder (chainable).
func (b *SnapshotBuilder) Responder(name string) *SnapshotBuilder {
	b.snap.ActiveResponder = name
	return b
}

// Prompter sets the active prompter (chainable).
func (b *SnapshotBuilder) Prompter(name string) *SnapshotBuilder {
	b.snap.ActivePrompter = name
	return b
}

// State stores v as the producer's state at version. It panics if v cannot
// be encoded, which only happens with broken test fixtures.
func (b *SnapshotBuilder) State(producer string, version int, v any) *SnapshotBuilder {
	st, err := core.NewState(producer, version, v)
	if err != nil {
		panic(err)
	}
	b.snap.States[producer] = st
	return b
}

// Empty stores an empty version-1 state for each producer (chainable).
func (b *SnapshotBuilder) Empty(producers ...string) *SnapshotBuilder {
	for _, p := range producers {
		b.snap.States[p] = core.State{Producer: p, Version: 1}
	}
	return b
}

// Build returns a deep copy of the snapshot built so far.
func (b *SnapshotBuilder) Build() *core.Snapshot {
	return b.snap.Clone()
}

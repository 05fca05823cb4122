package session

import (
	"context"
	"sync"

	"github.com/hupe1980/turnmesh/core"
)

// InMemoryStore is a volatile SnapshotStore keeping snapshots in a process
// local map. It is safe for concurrent access and best suited for tests or
// the CLI. Snapshots are cloned on the way in and out so callers can never
// mutate stored state.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*core.Snapshot
}

var _ core.SnapshotStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]*core.Snapshot)}
}

// Load returns a clone of the session's snapshot, or nil for a new session.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshots[sessionID].Clone(), nil
}

// Save stores a clone of snap.
func (s *InMemoryStore) Save(ctx context.Context, sessionID string, snap *core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[sessionID] = snap.Clone()

	return nil
}

// Delete forgets the session. Deleting an unknown session is not an error.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, sessionID)

	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

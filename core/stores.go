package core

import (
	"context"
	"time"
)

// SnapshotStore persists the per-session Snapshot between turns.
// Load returns (nil, nil) for a session without history.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, sessionID string, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// ResponseCache memoizes remote responses keyed by request fingerprint.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte, ttl time.Duration)
}

// SafetyChecker decides whether a candidate text may be shown to the user.
type SafetyChecker interface {
	IsOffensive(ctx context.Context, text string) (bool, error)
}

// SafetyFunc adapts a function to SafetyChecker.
type SafetyFunc func(ctx context.Context, text string) (bool, error)

// IsOffensive implements SafetyChecker.
func (f SafetyFunc) IsOffensive(ctx context.Context, text string) (bool, error) { return f(ctx, text) }

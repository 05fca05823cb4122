package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/engine"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/session"
)

// ErrTurnInProgress is returned when a session already has a running turn.
var ErrTurnInProgress = errors.New("turn already in progress for session")

// Options holds dependency overrides passed to New().
type Options struct {
	// Store persists snapshots between turns. Defaults to an in-memory store.
	Store core.SnapshotStore
	// Logger receives storage and lifecycle reports.
	Logger logging.Logger
}

// Runner coordinates turns of many sessions against one engine. Public
// methods are safe for concurrent use.
type Runner struct {
	engine *engine.Engine
	store  core.SnapshotStore
	logger logging.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
	bySession  map[string]string
}

// New constructs a Runner with optional overrides.
func New(e *engine.Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Store:  session.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		engine:     e,
		store:      opts.Store,
		logger:     logging.OrNoOp(opts.Logger),
		activeRuns: make(map[string]context.CancelFunc),
		bySession:  make(map[string]string),
	}
}

// Engine returns the wrapped engine.
func (r *Runner) Engine() *engine.Engine { return r.engine }

// Store returns the snapshot store.
func (r *Runner) Store() core.SnapshotStore { return r.store }

// HandleTurn runs one turn of sessionID. The returned error only reports
// storage failures and concurrent turns; fatal turns are reported through
// TurnResult.Err and still return a result with the apology text.
func (r *Runner) HandleTurn(ctx context.Context, sessionID, utterance string, metadata map[string]string) (*engine.TurnResult, error) {
	turnID := core.NewID()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.begin(sessionID, turnID, cancel); err != nil {
		return nil, err
	}
	defer r.end(sessionID, turnID)

	prev, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	res := r.engine.RunTurn(ctx, engine.TurnInput{
		TurnID:    turnID,
		SessionID: sessionID,
		Utterance: utterance,
		Metadata:  metadata,
		Previous:  prev,
	})

	// Persisting must not depend on a turn context that may have expired.
	storeCtx := context.WithoutCancel(ctx)

	if res.ShouldEndSession || res.NewSnapshot == nil {
		if err := r.store.Delete(storeCtx, sessionID); err != nil {
			return res, fmt.Errorf("failed to delete snapshot: %w", err)
		}

		r.logger.Debug("session ended", "session_id", sessionID, "turn_id", turnID, "fatal", res.Fatal())

		return res, nil
	}

	if err := r.store.Save(storeCtx, sessionID, res.NewSnapshot); err != nil {
		return res, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return res, nil
}

// EndSession drops the stored snapshot of sessionID.
func (r *Runner) EndSession(ctx context.Context, sessionID string) error {
	if err := r.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Cancel cancels a running turn by ID. The turn finishes on the fatal path.
func (r *Runner) Cancel(turnID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[turnID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s not found", turnID)
	}

	cancel()

	return nil
}

// ActiveTurns returns the number of turns currently running.
func (r *Runner) ActiveTurns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}

// ActiveTurn returns the ID of the turn running for sessionID, if any.
func (r *Runner) ActiveTurn(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySession[sessionID]
	return id, ok
}

func (r *Runner) begin(sessionID, turnID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if running, ok := r.bySession[sessionID]; ok {
		return fmt.Errorf("%w: session %s, turn %s", ErrTurnInProgress, sessionID, running)
	}

	r.activeRuns[turnID] = cancel
	r.bySession[sessionID] = turnID

	return nil
}

func (r *Runner) end(sessionID, turnID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.activeRuns, turnID)
	delete(r.bySession, sessionID)
}

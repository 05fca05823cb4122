// Package turnmesh provides a high-level façade over the turn engine and its
// services (snapshot store, safety checker, metrics & logging) for building
// multi-component dialogue agents. Most applications interact with this
// package by:
//  1. Creating a TurnMesh via New() (optionally overriding the default in‑memory store)
//  2. Registering annotators (remote or local tasks) and candidate generators
//  3. Calling HandleTurn once per user utterance
//
// The façade delegates orchestration to engine.Engine and persistence to
// runner.Runner. All defaults are safe for local development and testing;
// production deployments typically supply a durable SnapshotStore, a safety
// checker and a structured logger.
package turnmesh

import (
	"context"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/engine"
	"github.com/hupe1980/turnmesh/generator"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/metrics"
	"github.com/hupe1980/turnmesh/runner"
	"github.com/hupe1980/turnmesh/session"
)

// Options configures the TurnMesh instance.
type Options struct {
	// EngineConfig holds timeouts, protection lists and the apology text.
	EngineConfig engine.Config

	// Store persists snapshots between turns (defaults to in-memory).
	Store core.SnapshotStore

	// Safety vets selected candidates. Nil accepts every candidate.
	Safety core.SafetyChecker

	// Metrics records turn and task metrics. Nil disables metrics.
	Metrics *metrics.Collector

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TurnMesh is the high-level façade aggregating the engine and the runner.
type TurnMesh struct {
	opts   Options
	engine *engine.Engine
	runner *runner.Runner
}

// New creates a new TurnMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *TurnMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig(),
		Store:        session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Safety = opts.Safety
	})

	r := runner.New(e, func(o *runner.Options) {
		o.Store = opts.Store
		o.Logger = opts.Logger
	})

	return &TurnMesh{opts: opts, engine: e, runner: r}
}

// RegisterAnnotator adds an annotation task to the dependency graph.
func (m *TurnMesh) RegisterAnnotator(t core.Task) error { return m.engine.RegisterAnnotator(t) }

// RegisterGenerator adds a candidate producer.
func (m *TurnMesh) RegisterGenerator(g generator.Generator) error {
	return m.engine.RegisterGenerator(g)
}

// RegisterCallback adds a turn lifecycle hook.
func (m *TurnMesh) RegisterCallback(cb engine.Callback) { m.engine.RegisterCallback(cb) }

// HandleTurn runs one turn for sessionID and persists the resulting snapshot.
func (m *TurnMesh) HandleTurn(
	ctx context.Context,
	sessionID string,
	utterance string,
	metadata map[string]string,
) (*engine.TurnResult, error) {
	return m.runner.HandleTurn(ctx, sessionID, utterance, metadata)
}

// Cancel stops a running turn.
func (m *TurnMesh) Cancel(turnID string) error { return m.runner.Cancel(turnID) }

// EndSession drops the stored state of a session.
func (m *TurnMesh) EndSession(ctx context.Context, sessionID string) error {
	return m.runner.EndSession(ctx, sessionID)
}

// Engine exposes the underlying engine.
func (m *TurnMesh) Engine() *engine.Engine { return m.engine }

// Runner exposes the underlying runner.
func (m *TurnMesh) Runner() *runner.Runner { return m.runner }

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/executor"
	"github.com/hupe1980/turnmesh/generator"
	"github.com/hupe1980/turnmesh/internal/util"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/metrics"
	"github.com/hupe1980/turnmesh/ranking"
	"github.com/hupe1980/turnmesh/safety"
	"github.com/hupe1980/turnmesh/scheduler"
)

// Phase names used in logs, metrics and callbacks.
const (
	PhaseAnnotation  = "annotation"
	PhaseResponse    = "response"
	PhasePrompt      = "prompt"
	PhaseStateUpdate = "state_update"
)

// fatalCallbackGrace bounds after_turn callbacks of a turn that already
// missed its deadline.
const fatalCallbackGrace = 50 * time.Millisecond

// Options configures an Engine.
type Options struct {
	// Config is the orchestration policy. Defaults to DefaultConfig().
	Config Config

	// Logger receives turn and phase reports. Defaults to NoOp.
	Logger logging.Logger

	// Metrics records turn, phase and task metrics. May be nil.
	Metrics *metrics.Collector

	// Safety vets selected candidates. Nil accepts everything.
	Safety core.SafetyChecker

	// Executor runs tasks. When nil, one is built from Logger, Metrics and
	// Config.DisableTimeouts.
	Executor *executor.Executor
}

// Engine is the turn orchestrator. It owns the registered annotators and
// producers and runs one turn at a time per call; concurrent RunTurn calls
// for different sessions are safe.
//
// Each turn runs four phases:
//
//	annotation   -> dependency graph of annotators (scheduler)
//	response     -> eligible producers race for the response (ranking)
//	prompt       -> only when the response asks for a follow-up
//	state_update -> producers that ran compute their next-turn state
type Engine struct {
	cfg       Config
	logger    logging.Logger
	metrics   *metrics.Collector
	safety    core.SafetyChecker
	exec      *executor.Executor
	sched     *scheduler.Scheduler
	ranker    *ranking.Runner
	callbacks *CallbackManager

	mu         sync.RWMutex
	graph      *scheduler.Graph
	generators []generator.Generator
	byName     map[string]generator.Generator
}

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	exec := opts.Executor
	if exec == nil {
		exec = executor.New(func(o *executor.Options) {
			o.Logger = logger
			o.Metrics = opts.Metrics
			o.DisableTimeouts = opts.Config.DisableTimeouts
		})
	}

	return &Engine{
		cfg:     opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		safety:  opts.Safety,
		exec:    exec,
		sched: scheduler.New(exec, func(o *scheduler.Options) {
			o.Phase = PhaseAnnotation
			o.Slow = opts.Config.SlowAnnotators
		}),
		ranker:    ranking.New(exec),
		callbacks: NewCallbackManager(),
		byName:    make(map[string]generator.Generator),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// RegisterAnnotator adds an annotation task. The dependency graph is
// revalidated; on error the engine is left unchanged.
func (e *Engine) RegisterAnnotator(t core.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.graph.With(t)
	if err != nil {
		return fmt.Errorf("register annotator %s: %w", t.Name, err)
	}

	e.graph = g

	return nil
}

// RegisterGenerator adds a candidate producer. Registration order is the
// declared producer order used to break ranking ties.
func (e *Engine) RegisterGenerator(g generator.Generator) error {
	if g == nil {
		return errors.New("register generator: nil generator")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	name := g.Name()
	if name == "" {
		return errors.New("register generator: empty name")
	}

	if _, exists := e.byName[name]; exists {
		return fmt.Errorf("register generator %s: %w", name, core.ErrDuplicateTask)
	}

	e.byName[name] = g
	e.generators = append(e.generators, g)

	return nil
}

// RegisterCallback adds a turn lifecycle hook.
func (e *Engine) RegisterCallback(cb Callback) {
	e.callbacks.RegisterCallback(cb)
}

// Generators returns the registered producer names in registration order.
func (e *Engine) Generators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.generators))
	for i, g := range e.generators {
		names[i] = g.Name()
	}

	return names
}

// Annotators returns the annotator names in dependency order.
func (e *Engine) Annotators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.graph == nil {
		return nil
	}

	return e.graph.TopologicalOrder()
}

// TurnInput is what a front end hands the engine for one turn.
type TurnInput struct {
	// TurnID identifies the turn. A random ID is used when empty.
	TurnID    string
	SessionID string
	Utterance string
	Metadata  map[string]string
	// Previous is the snapshot written by the session's last turn, nil on
	// turn zero.
	Previous *core.Snapshot
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	TurnID           string
	Text             string
	ShouldEndSession bool
	Responder        string
	Prompter         string
	// NewSnapshot is nil for fatal turns.
	NewSnapshot      *core.Snapshot
	Annotations      core.Results
	ResponseOutcomes core.Results
	PromptOutcomes   core.Results
	StateOutcomes    core.Results
	Duration         time.Duration
	// Err is core.ErrTurnTimeout or core.ErrExhaustedCandidates for fatal
	// turns, nil otherwise.
	Err error
}

// Fatal reports whether the turn ended on the apology path.
func (r *TurnResult) Fatal() bool { return r.Err != nil }

// turnRun holds per-turn bookkeeping.
type turnRun struct {
	turn       *core.Turn
	previous   *core.Snapshot
	generators []generator.Generator
	order      []string
	requests   map[string]*generator.Request
	result     *TurnResult
}

// RunTurn executes one turn. It never returns nil; fatal conditions are
// reported through TurnResult.Err together with the apology text.
func (e *Engine) RunTurn(ctx context.Context, in TurnInput) *TurnResult {
	start := time.Now()

	e.mu.RLock()
	graph := e.graph
	generators := append([]generator.Generator(nil), e.generators...)
	e.mu.RUnlock()

	turnCtx, cancel := e.phaseContext(ctx, e.cfg.TurnTimeout)
	defer cancel()

	turnID := in.TurnID
	if turnID == "" {
		turnID = core.NewID()
	}

	turn := &core.Turn{
		ID:        turnID,
		SessionID: in.SessionID,
		Utterance: in.Utterance,
		Metadata:  in.Metadata,
	}

	if in.Previous != nil {
		turn.Index = in.Previous.TurnIndex + 1
		turn.PreviousResponder = in.Previous.ActiveResponder
		turn.PreviousPrompter = in.Previous.ActivePrompter
	}

	if deadline, ok := turnCtx.Deadline(); ok {
		turn.Deadline = deadline
	}

	turnCtx = core.WithTurn(turnCtx, turn)

	run := &turnRun{
		turn:       turn,
		previous:   in.Previous,
		generators: generators,
		order:      make([]string, len(generators)),
		requests:   make(map[string]*generator.Request),
		result:     &TurnResult{TurnID: turn.ID},
	}
	for i, g := range generators {
		run.order[i] = g.Name()
	}

	logger := logging.ForTurn(e.logger, in.SessionID, turn.ID)
	logger.Info("turn started", "turn_index", turn.Index, "utterance_length", len(in.Utterance), "generators", len(generators))

	e.fire(turnCtx, &CallbackContext{Type: CallbackBeforeTurn, Turn: turn})

	// Deferred annotators keep running on this context until the turn ends.
	annCtx, annCancel := e.phaseContext(turnCtx, e.cfg.AnnotationTimeout)
	defer annCancel()

	phaseStart := time.Now()
	turn.Annotations = e.sched.Run(annCtx, graph)
	run.result.Annotations = turn.Annotations
	e.metrics.ObservePhase(PhaseAnnotation, time.Since(phaseStart))
	logging.Phase(logger, PhaseAnnotation, time.Since(phaseStart), outcomeCounts(turn.Annotations))

	e.fire(turnCtx, &CallbackContext{Type: CallbackAfterAnnotation, Turn: turn, Phase: PhaseAnnotation})

	if err := turnCtx.Err(); err != nil {
		return e.fatal(turnCtx, run, start, timeoutError(PhaseAnnotation, err), logger)
	}

	response, err := e.responsePhase(turnCtx, run, logger)
	if err != nil {
		return e.fatal(turnCtx, run, start, err, logger)
	}

	var prompt *core.Candidate
	if response.NeedsFollowUp {
		prompt, err = e.promptPhase(turnCtx, run, response, logger)
		if err != nil {
			return e.fatal(turnCtx, run, start, err, logger)
		}
	}

	snapshot := e.statePhase(turnCtx, run, response, prompt)
	if err := turnCtx.Err(); err != nil {
		return e.fatal(turnCtx, run, start, timeoutError(PhaseStateUpdate, err), logger)
	}

	res := run.result
	res.Responder = response.Producer
	res.Text = response.Text
	res.ShouldEndSession = response.EndSession
	if prompt != nil {
		res.Prompter = prompt.Producer
		res.Text = util.JoinSentences(response.Text, prompt.Text)
		res.ShouldEndSession = res.ShouldEndSession || prompt.EndSession
	}
	res.NewSnapshot = snapshot
	res.Duration = time.Since(start)

	e.metrics.ObserveTurn(res.Duration, "ok")
	logging.Turn(logger, res.Duration, res.Responder, res.Prompter, nil)
	if res.ShouldEndSession {
		logger.Debug("session end requested", "responder", res.Responder, "prompter", res.Prompter)
	}

	e.fire(turnCtx, &CallbackContext{Type: CallbackAfterTurn, Turn: turn, Result: res})

	return res
}

// responsePhase runs every eligible producer and selects a safe response.
func (e *Engine) responsePhase(ctx context.Context, run *turnRun, logger logging.Logger) (*core.Candidate, error) {
	tasks := make([]core.Task, 0, len(run.generators))

	for _, g := range run.generators {
		state, ok := e.eligibleState(run, g, logger)
		if !ok {
			continue
		}

		req := &generator.Request{Turn: run.turn, State: state}
		run.requests[g.Name()] = req
		tasks = append(tasks, generator.RespondTask(g, req))
	}

	phaseCtx, cancel := e.phaseContext(ctx, e.cfg.ResponseTimeout)
	defer cancel()

	phaseStart := time.Now()
	results := e.ranker.Run(phaseCtx, PhaseResponse, tasks, ranking.RunOptions{
		Protected:                 e.cfg.Protected,
		ProtectedUnlessNoFollowUp: e.cfg.ProtectedUnlessNoFollowUp,
		Order:                     e.hints(run.turn.PreviousResponder),
	})
	logging.Phase(logger, PhaseResponse, time.Since(phaseStart), outcomeCounts(results))
	run.result.ResponseOutcomes = results

	if err := ctx.Err(); err != nil {
		return nil, timeoutError(PhaseResponse, err)
	}

	ranked := ranking.Rank(results, ranking.RankOptions{
		Active: run.turn.PreviousResponder,
		Order:  run.order,
	})

	return e.selectSafe(ctx, run, PhaseResponse, ranked, logger)
}

// promptPhase asks producers for a follow-up to response. The response
// winner only takes part when it is the fallback producer.
func (e *Engine) promptPhase(ctx context.Context, run *turnRun, response *core.Candidate, logger logging.Logger) (*core.Candidate, error) {
	tasks := make([]core.Task, 0, len(run.requests))

	for _, g := range run.generators {
		name := g.Name()

		req, ok := run.requests[name]
		if !ok {
			continue
		}

		if name == response.Producer && name != e.cfg.FallbackProducer {
			continue
		}

		p, ok := generator.PrompterOf(g)
		if !ok {
			continue
		}

		promptReq := &generator.Request{Turn: run.turn, State: req.State, Response: response}
		if name == response.Producer && response.State != nil {
			// Build on the state the response already proposed.
			promptReq.State = *response.State
		}

		tasks = append(tasks, generator.PromptTask(name, p, promptReq))
	}

	if len(tasks) == 0 {
		logger.Debug("no prompters eligible")
		return nil, nil
	}

	phaseCtx, cancel := e.phaseContext(ctx, e.cfg.PromptTimeout)
	defer cancel()

	phaseStart := time.Now()
	results := e.ranker.Run(phaseCtx, PhasePrompt, tasks, ranking.RunOptions{
		Protected:                 e.cfg.Protected,
		ProtectedUnlessNoFollowUp: e.cfg.ProtectedUnlessNoFollowUp,
		Order:                     e.hints(run.turn.PreviousPrompter),
	})
	logging.Phase(logger, PhasePrompt, time.Since(phaseStart), outcomeCounts(results))
	run.result.PromptOutcomes = results

	if err := ctx.Err(); err != nil {
		return nil, timeoutError(PhasePrompt, err)
	}

	ranked := ranking.Rank(results, ranking.RankOptions{
		Active: run.turn.PreviousPrompter,
		Order:  run.order,
	})

	if ranked.Len() == 0 {
		logger.Debug("no prompt candidates")
		return nil, nil
	}

	return e.selectSafe(ctx, run, PhasePrompt, ranked, logger)
}

// selectSafe pops candidates until one passes the safety checker.
func (e *Engine) selectSafe(ctx context.Context, run *turnRun, phase string, ranked *ranking.RankedResults, logger logging.Logger) (*core.Candidate, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, timeoutError(phase, err)
		}

		c := ranked.Pop()
		if c == nil {
			return nil, fmt.Errorf("%s phase: %w", phase, core.ErrExhaustedCandidates)
		}

		v, ok := e.checkSafety(ctx, c.Text)
		if !ok {
			logger.Warn("safety check abandoned", "phase", phase, "producer", c.Producer)
			return nil, timeoutError(phase, ctx.Err())
		}
		if v.err != nil {
			logger.Warn("safety check failed", "phase", phase, "producer", c.Producer, "error", v.err)
		}

		if v.offensive {
			e.metrics.IncRejected(phase)
			logger.Info("candidate rejected", "phase", phase, "producer", c.Producer, "priority", c.Priority.String())
			e.fire(ctx, &CallbackContext{Type: CallbackOnRejected, Turn: run.turn, Phase: phase, Candidate: c})

			continue
		}

		logger.Debug("candidate selected", "phase", phase, "producer", c.Producer, "priority", c.Priority.String())
		e.fire(ctx, &CallbackContext{Type: CallbackOnSelected, Turn: run.turn, Phase: phase, Candidate: c})

		return c, nil
	}
}

type verdict struct {
	offensive bool
	err       error
}

// checkSafety asks the safety checker on a separate goroutine. ok is false
// when ctx is done first; the checker's late answer is discarded.
func (e *Engine) checkSafety(ctx context.Context, text string) (v verdict, ok bool) {
	if e.safety == nil {
		return verdict{}, true
	}

	ch := make(chan verdict, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- verdict{offensive: true, err: fmt.Errorf("safety checker panicked: %v", r)}
			}
		}()

		offensive, err := safety.Check(ctx, e.safety, text)
		ch <- verdict{offensive: offensive, err: err}
	}()

	select {
	case v = <-ch:
		return v, true
	case <-ctx.Done():
		return verdict{}, false
	}
}

// statePhase computes the next snapshot. Producers without an outcome this
// turn are dropped from it.
func (e *Engine) statePhase(ctx context.Context, run *turnRun, response, prompt *core.Candidate) *core.Snapshot {
	proposed := map[string]*core.State{response.Producer: response.State}
	if prompt != nil && prompt.State != nil {
		proposed[prompt.Producer] = prompt.State
	}

	tasks := make([]core.Task, 0, len(run.requests))
	current := make(map[string]core.State, len(run.requests))

	for _, g := range run.generators {
		name := g.Name()

		req, ok := run.requests[name]
		if !ok || !producedOutcome(name, run.result.ResponseOutcomes, run.result.PromptOutcomes) {
			continue
		}

		_, chosen := proposed[name]
		if prompt != nil && name == prompt.Producer {
			chosen = true
		}

		current[name] = req.State
		tasks = append(tasks, generator.UpdateTask(g, req, chosen, proposed[name]))
	}

	phaseCtx, cancel := e.phaseContext(ctx, e.cfg.StateUpdateTimeout)
	defer cancel()

	phaseStart := time.Now()
	results := e.exec.Run(phaseCtx, PhaseStateUpdate, tasks, func(o *executor.RunOptions) {
		o.SubstituteDefaults = true
	})
	e.metrics.ObservePhase(PhaseStateUpdate, time.Since(phaseStart))
	run.result.StateOutcomes = results

	snapshot := &core.Snapshot{
		TurnIndex:       run.turn.Index,
		ActiveResponder: response.Producer,
		States:          make(map[string]core.State, len(tasks)),
		Updated:         time.Now(),
	}
	if prompt != nil {
		snapshot.ActivePrompter = prompt.Producer
	}

	for name := range current {
		v, ok := results.Value(name)
		if !ok {
			continue
		}

		st, ok := v.(core.State)
		if !ok {
			e.logger.Warn("state update returned unexpected type", "producer", name, "type", fmt.Sprintf("%T", v))
			continue
		}

		st.Producer = name
		snapshot.States[name] = st.Clone()
	}

	return snapshot
}

// eligibleState returns the state a producer starts the turn with.
func (e *Engine) eligibleState(run *turnRun, g generator.Generator, logger logging.Logger) (core.State, bool) {
	name := g.Name()

	if st, ok := run.previous.State(name); ok {
		return st.Clone(), true
	}

	if run.turn.Index > 0 && !e.cfg.RebootstrapMissing {
		return core.State{}, false
	}

	if !e.bootstraps(name) {
		return core.State{}, false
	}

	st, err := g.BootstrapState()
	if err != nil {
		logger.Warn("bootstrap state failed", "producer", name, "error", err)
		return core.State{}, false
	}

	st.Producer = name

	return st, true
}

func (e *Engine) bootstraps(name string) bool {
	if len(e.cfg.Bootstrap) == 0 {
		return true
	}

	for _, n := range e.cfg.Bootstrap {
		if n == name {
			return true
		}
	}

	return false
}

func outcomeCounts(results core.Results) map[string]int {
	counts := make(map[string]int)
	for _, o := range results {
		counts[o.Kind.String()]++
	}
	return counts
}

// fatal builds the apology result for a turn that cannot complete.
func (e *Engine) fatal(ctx context.Context, run *turnRun, start time.Time, err error, logger logging.Logger) *TurnResult {
	res := run.result
	res.Text = e.cfg.ApologyText
	res.ShouldEndSession = true
	res.NewSnapshot = nil
	res.Err = err
	res.Duration = time.Since(start)

	label := "exhausted"
	if errors.Is(err, core.ErrTurnTimeout) {
		label = "timeout"
	}

	e.metrics.ObserveTurn(res.Duration, label)
	logging.Turn(logger, res.Duration, "", "", err)

	// Callbacks still get a live context even when the turn's has ended,
	// but only for a short grace period.
	cbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fatalCallbackGrace)
	defer cancel()
	e.fire(cbCtx, &CallbackContext{Type: CallbackAfterTurn, Turn: run.turn, Result: res})

	return res
}

// fire runs the callbacks of cbCtx.Type and waits for them until ctx is
// done. Callbacks still running then are abandoned.
func (e *Engine) fire(ctx context.Context, cbCtx *CallbackContext) {
	if !e.callbacks.Has(cbCtx.Type) {
		return
	}

	done := make(chan error, 1)
	go func() { done <- e.callbacks.ExecuteCallbacks(ctx, cbCtx) }()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Warn("callback failed", "type", string(cbCtx.Type), "error", err)
		}
	case <-ctx.Done():
		e.logger.Warn("callback abandoned", "type", string(cbCtx.Type), "error", ctx.Err())
	}
}

// phaseContext derives a context bounded by d, unless timeouts are disabled.
// The parent's deadline still applies, so the effective deadline is the
// earlier of the two.
func (e *Engine) phaseContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if e.cfg.DisableTimeouts || d <= 0 {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, d)
}

func timeoutError(phase string, cause error) error {
	return fmt.Errorf("%s phase: %w: %w", phase, core.ErrTurnTimeout, cause)
}

func producedOutcome(name string, phases ...core.Results) bool {
	for _, results := range phases {
		if o, ok := results[name]; ok && (o.Kind == core.OutcomeSuccess || o.Kind == core.OutcomeUsedDefault) {
			return true
		}
	}

	return false
}

func (e *Engine) hints(active string) []string {
	order := make([]string, 0, len(e.cfg.SubmissionHints)+1)
	if active != "" {
		order = append(order, active)
	}

	return append(order, e.cfg.SubmissionHints...)
}

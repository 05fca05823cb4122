// Package engine implements the turn orchestrator of turnmesh.
//
// An Engine turns one user utterance into one reply. It owns two registries:
// annotators (core.Task values forming a dependency graph) and candidate
// producers (generator.Generator values). Every call to RunTurn walks the
// same pipeline under a single turn deadline.
//
// # Pipeline
//
//	┌────────────────────────────────────────────────────────┐
//	│                   RunTurn(TurnInput)                   │
//	├────────────────────────────────────────────────────────┤
//	│ annotation    scheduler.Run over the annotator graph   │
//	├────────────────────────────────────────────────────────┤
//	│ response      ranking.Runner over eligible producers   │
//	│               rank -> safety check -> pop until safe   │
//	├────────────────────────────────────────────────────────┤
//	│ prompt        only when the response needs a follow-up │
//	├────────────────────────────────────────────────────────┤
//	│ state_update  executor.Run, defaults keep old state    │
//	└────────────────────────────────────────────────────────┘
//
// A producer is eligible when the previous snapshot holds its state. On turn
// zero the producers named in Config.Bootstrap (all of them when the list is
// empty) start from their bootstrap state instead.
//
// Candidates are ordered by priority, then by whether their producer was
// active on the previous turn, then by registration order. The safety
// checker sees candidates in that order; rejected candidates are dropped and
// the next one is tried.
//
// # Deadlines
//
// Config.TurnTimeout bounds the whole turn. Each phase derives its context
// from the turn context, so its effective deadline is the earlier of its own
// timeout and the turn deadline. Config.DisableTimeouts removes all of them.
// The safety checker and callbacks run on their own goroutines; once the turn
// deadline passes the engine stops waiting for them and their late answers
// are discarded.
//
// # Fatal turns
//
// Only two conditions end a turn early: the turn deadline passing
// (core.ErrTurnTimeout) and every candidate being rejected
// (core.ErrExhaustedCandidates). Both return Config.ApologyText with
// ShouldEndSession set and no new snapshot. Task failures never surface;
// they are resolved inside their phase.
//
// # State hygiene
//
// The next snapshot only holds states of producers that returned an outcome
// this turn. The chosen producers run UpdateIfChosen with the state their
// candidate proposed; every other producer that ran runs UpdateIfNotChosen.
// A failed or late update keeps the state the producer would have had.
//
// # Usage
//
//	e := engine.New(func(o *engine.Options) {
//	    o.Logger = logger
//	    o.Safety = safety.NewBlocklist("badword")
//	})
//	_ = e.RegisterAnnotator(remote.NewAnnotator("ner", nerURL))
//	_ = e.RegisterGenerator(generator.NewFallback())
//
//	res := e.RunTurn(ctx, engine.TurnInput{SessionID: "s1", Utterance: "hi"})
//	fmt.Println(res.Text)
//
// Callbacks registered with RegisterCallback observe the pipeline at fixed
// points (see CallbackType) without being able to change its outcome.
package engine

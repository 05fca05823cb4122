package generator

import (
	"context"
	"fmt"

	"github.com/hupe1980/turnmesh/core"
)

// Request is what a producer sees for one turn.
type Request struct {
	Turn *core.Turn
	// State is the producer's state carried over from the previous turn, or
	// its bootstrap state.
	State core.State
	// Response is the selected response candidate. It is only set in the
	// prompt phase.
	Response *core.Candidate
}

// Generator produces response candidates.
type Generator interface {
	Name() string
	// BootstrapState returns the state used when the producer has none.
	BootstrapState() (core.State, error)
	Respond(ctx context.Context, req *Request) (*core.Candidate, error)
}

// Prompter produces follow-up prompt candidates.
type Prompter interface {
	Prompt(ctx context.Context, req *Request) (*core.Candidate, error)
}

// StateUpdater lets a producer decide its next-turn state.
type StateUpdater interface {
	// UpdateIfChosen receives the state proposed by the chosen candidate.
	UpdateIfChosen(ctx context.Context, req *Request, proposed core.State) (core.State, error)
	// UpdateIfNotChosen receives the producer's current state.
	UpdateIfNotChosen(ctx context.Context, req *Request, current core.State) (core.State, error)
}

// PrompterOf returns g as a Prompter if it can produce prompts.
func PrompterOf(g Generator) (Prompter, bool) {
	p, ok := g.(Prompter)
	if !ok {
		return nil, false
	}
	if c, ok := g.(interface{ CanPrompt() bool }); ok && !c.CanPrompt() {
		return nil, false
	}
	return p, true
}

// RespondTask wraps g.Respond as a candidate-producing task. Errors fall back
// to a silent candidate so the producer still counts as having run.
func RespondTask(g Generator, req *Request) core.Task {
	name := g.Name()
	return core.Task{
		Name: name,
		Run: func(ctx context.Context, _ core.Inputs) (any, error) {
			c, err := g.Respond(ctx, req)
			return stamp(name, c, err)
		},
		Default: silent(name),
	}
}

// PromptTask wraps p.Prompt for the producer called name.
func PromptTask(name string, p Prompter, req *Request) core.Task {
	return core.Task{
		Name: name,
		Run: func(ctx context.Context, _ core.Inputs) (any, error) {
			c, err := p.Prompt(ctx, req)
			return stamp(name, c, err)
		},
		Default: silent(name),
	}
}

// UpdateTask computes the producer's next-turn state. chosen selects between
// UpdateIfChosen (with proposed) and UpdateIfNotChosen. The task's default is
// the state the producer would keep without an update.
func UpdateTask(g Generator, req *Request, chosen bool, proposed *core.State) core.Task {
	fallback := req.State
	if chosen && proposed != nil {
		fallback = *proposed
	}

	return core.Task{
		Name: g.Name(),
		Run: func(ctx context.Context, _ core.Inputs) (any, error) {
			u, ok := g.(StateUpdater)
			if !ok {
				return fallback, nil
			}
			if chosen {
				return u.UpdateIfChosen(ctx, req, fallback)
			}
			return u.UpdateIfNotChosen(ctx, req, req.State)
		},
		Default: core.Static(fallback),
	}
}

func stamp(name string, c *core.Candidate, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("producer %s returned no candidate", name)
	}
	if c.Producer == "" {
		c.Producer = name
	}
	return c, nil
}

func silent(name string) core.DefaultFunc {
	return func(core.Inputs) any {
		return &core.Candidate{Producer: name, Priority: core.PriorityNone}
	}
}

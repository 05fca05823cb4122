package generator

import (
	"context"

	"github.com/hupe1980/turnmesh/core"
)

// CandidateFunc produces a candidate for a request.
type CandidateFunc func(ctx context.Context, req *Request) (*core.Candidate, error)

// FuncOptions configures a Func producer.
type FuncOptions struct {
	Bootstrap      core.State
	PromptFn       CandidateFunc
	ChosenFn       func(ctx context.Context, req *Request, proposed core.State) (core.State, error)
	NotChosenFn    func(ctx context.Context, req *Request, current core.State) (core.State, error)
	BootstrapError error
}

// Func adapts plain functions to Generator, Prompter and StateUpdater.
type Func struct {
	name    string
	respond CandidateFunc
	opts    FuncOptions
}

// NewFunc creates a producer called name that responds with respond.
func NewFunc(name string, respond CandidateFunc, optFns ...func(o *FuncOptions)) *Func {
	opts := FuncOptions{Bootstrap: core.State{Producer: name, Version: 1}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Func{name: name, respond: respond, opts: opts}
}

// Name implements Generator.
func (f *Func) Name() string { return f.name }

// BootstrapState implements Generator.
func (f *Func) BootstrapState() (core.State, error) {
	return f.opts.Bootstrap.Clone(), f.opts.BootstrapError
}

// Respond implements Generator.
func (f *Func) Respond(ctx context.Context, req *Request) (*core.Candidate, error) {
	return f.respond(ctx, req)
}

// Prompt implements Prompter.
func (f *Func) Prompt(ctx context.Context, req *Request) (*core.Candidate, error) {
	if f.opts.PromptFn == nil {
		return &core.Candidate{Producer: f.name, Priority: core.PriorityNone}, nil
	}
	return f.opts.PromptFn(ctx, req)
}

// CanPrompt reports whether a prompt function is configured.
func (f *Func) CanPrompt() bool { return f.opts.PromptFn != nil }

// UpdateIfChosen implements StateUpdater.
func (f *Func) UpdateIfChosen(ctx context.Context, req *Request, proposed core.State) (core.State, error) {
	if f.opts.ChosenFn == nil {
		return proposed, nil
	}
	return f.opts.ChosenFn(ctx, req, proposed)
}

// UpdateIfNotChosen implements StateUpdater.
func (f *Func) UpdateIfNotChosen(ctx context.Context, req *Request, current core.State) (core.State, error) {
	if f.opts.NotChosenFn == nil {
		return current, nil
	}
	return f.opts.NotChosenFn(ctx, req, current)
}

package generator

import (
	"context"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/internal/util"
)

// DefaultFallbackName is the producer name used by NewFallback.
const DefaultFallbackName = "fallback"

const fallbackStateVersion = 1

// FallbackOptions configures the universal fallback producer.
type FallbackOptions struct {
	Name string
	// Responses are text/templates rotated turn by turn.
	Responses []string
	// Prompts are text/templates rotated turn by turn.
	Prompts []string
	// NeedsFollowUp asks the orchestrator to look for a prompt after a
	// fallback response.
	NeedsFollowUp bool
}

type fallbackState struct {
	Responses int `json:"responses"`
	Prompts   int `json:"prompts"`
}

// Fallback always has something to say, at PriorityUniversalFallback.
type Fallback struct {
	opts FallbackOptions
}

// NewFallback creates the universal fallback producer.
func NewFallback(optFns ...func(o *FallbackOptions)) *Fallback {
	opts := FallbackOptions{
		Name: DefaultFallbackName,
		Responses: []string{
			"Sorry, I'm not sure how to answer that.",
			"Hmm, I didn't quite get that.",
		},
		Prompts: []string{
			"What would you like to talk about?",
			"Is there anything else on your mind?",
		},
		NeedsFollowUp: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Fallback{opts: opts}
}

// Name implements Generator.
func (f *Fallback) Name() string { return f.opts.Name }

// BootstrapState implements Generator.
func (f *Fallback) BootstrapState() (core.State, error) {
	return core.NewState(f.opts.Name, fallbackStateVersion, fallbackState{})
}

// Respond implements Generator.
func (f *Fallback) Respond(_ context.Context, req *Request) (*core.Candidate, error) {
	st, err := f.decode(req.State)
	if err != nil {
		return nil, err
	}

	text, err := f.render(f.opts.Responses, st.Responses, req)
	if err != nil {
		return nil, err
	}

	st.Responses++

	return f.candidate(text, f.opts.NeedsFollowUp, st)
}

// Prompt implements Prompter.
func (f *Fallback) Prompt(_ context.Context, req *Request) (*core.Candidate, error) {
	st, err := f.decode(req.State)
	if err != nil {
		return nil, err
	}

	text, err := f.render(f.opts.Prompts, st.Prompts, req)
	if err != nil {
		return nil, err
	}

	st.Prompts++

	return f.candidate(text, false, st)
}

// CanPrompt reports whether prompt templates are configured.
func (f *Fallback) CanPrompt() bool { return len(f.opts.Prompts) > 0 }

func (f *Fallback) decode(s core.State) (fallbackState, error) {
	var st fallbackState
	if len(s.Data) == 0 {
		return st, nil
	}
	err := s.Decode(fallbackStateVersion, &st)
	return st, err
}

func (f *Fallback) render(templates []string, n int, req *Request) (string, error) {
	if len(templates) == 0 {
		return "", nil
	}
	return util.RenderTemplate(templates[n%len(templates)], TemplateData(req))
}

func (f *Fallback) candidate(text string, followUp bool, st fallbackState) (*core.Candidate, error) {
	next, err := core.NewState(f.opts.Name, fallbackStateVersion, st)
	if err != nil {
		return nil, err
	}

	return &core.Candidate{
		Producer:      f.opts.Name,
		Priority:      core.PriorityUniversalFallback,
		Text:          text,
		NeedsFollowUp: followUp,
		State:         &next,
	}, nil
}

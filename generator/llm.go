package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/model"
)

const llmStateVersion = 1

// LLMOptions configures a model-backed producer.
type LLMOptions struct {
	Instruction Instruction
	// Priority is used when the producer was not active last turn.
	Priority core.PriorityLevel
	// ContinuePriority is used when the producer was active last turn.
	ContinuePriority core.PriorityLevel
	// MaxHistoryMessages bounds the conversation kept in state.
	MaxHistoryMessages int
	NeedsFollowUp      bool
	Stream             bool
}

type llmState struct {
	Turns   int             `json:"turns"`
	History []model.Message `json:"history,omitempty"`
}

// LLM answers with a language model, keeping a bounded conversation history
// in its state while it stays the active responder.
type LLM struct {
	name string
	llm  model.Model
	opts LLMOptions
}

// NewLLM creates a model-backed producer.
func NewLLM(name string, llm model.Model, optFns ...func(o *LLMOptions)) *LLM {
	opts := LLMOptions{
		Instruction: NewInstructionFromText(
			"You are a friendly voice assistant. Answer in one or two short sentences.",
		),
		Priority:           core.PriorityCanStart,
		ContinuePriority:   core.PriorityCanStart,
		MaxHistoryMessages: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLM{name: name, llm: llm, opts: opts}
}

// Name implements Generator.
func (g *LLM) Name() string { return g.name }

// BootstrapState implements Generator.
func (g *LLM) BootstrapState() (core.State, error) {
	return core.NewState(g.name, llmStateVersion, llmState{})
}

// Respond implements Generator.
func (g *LLM) Respond(ctx context.Context, req *Request) (*core.Candidate, error) {
	st, err := g.decode(req.State)
	if err != nil {
		return nil, err
	}

	instructions, err := g.opts.Instruction.Resolve(req)
	if err != nil {
		return nil, fmt.Errorf("resolve instruction: %w", err)
	}

	user := model.Message{Role: model.RoleUser, Text: req.Turn.Utterance}
	messages := append(append([]model.Message(nil), st.History...), user)

	resp, err := model.Collect(ctx, g.llm, model.Request{
		Instructions: instructions,
		Messages:     messages,
		Stream:       g.opts.Stream,
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return &core.Candidate{Producer: g.name, Priority: core.PriorityNone}, nil
	}

	st.Turns++
	st.History = trimHistory(append(messages, model.Message{Role: model.RoleAssistant, Text: text}), g.opts.MaxHistoryMessages)

	next, err := core.NewState(g.name, llmStateVersion, st)
	if err != nil {
		return nil, err
	}

	priority := g.opts.Priority
	if req.Turn.PreviousResponder == g.name {
		priority = g.opts.ContinuePriority
	}

	return &core.Candidate{
		Producer:      g.name,
		Priority:      priority,
		Text:          text,
		NeedsFollowUp: g.opts.NeedsFollowUp,
		State:         &next,
	}, nil
}

// UpdateIfChosen implements StateUpdater.
func (g *LLM) UpdateIfChosen(_ context.Context, _ *Request, proposed core.State) (core.State, error) {
	return proposed, nil
}

// UpdateIfNotChosen implements StateUpdater. The history is dropped once the
// conversation moves to another producer.
func (g *LLM) UpdateIfNotChosen(_ context.Context, _ *Request, current core.State) (core.State, error) {
	st, err := g.decode(current)
	if err != nil {
		return core.State{}, err
	}
	st.History = nil
	return core.NewState(g.name, llmStateVersion, st)
}

func (g *LLM) decode(s core.State) (llmState, error) {
	var st llmState
	if len(s.Data) == 0 {
		return st, nil
	}
	err := s.Decode(llmStateVersion, &st)
	return st, err
}

func trimHistory(msgs []model.Message, max int) []model.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return append([]model.Message(nil), msgs[len(msgs)-max:]...)
}

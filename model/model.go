package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks text typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks text spoken by the agent.
	RoleAssistant Role = "assistant"
)

// Message is one conversational exchange handed to the model.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input built by generators.
type Request struct {
	Instructions string    `json:"instructions"` // system prompt
	Messages     []Message `json:"messages"`
	Stream       bool      `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required by generators to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Collect when the model closed its channels
// without a final response.
var ErrNoResponse = errors.New("model returned no final response")

// Collect runs m and returns its final response. Partial chunks are
// discarded. It returns early with ctx.Err() if ctx ends first.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	out, errCh := m.Generate(ctx, req)

	var final *Response

	for out != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			if !r.Partial {
				rr := r
				final = &rr
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final == nil {
		return Response{}, ErrNoResponse
	}

	return *final, nil
}

// MockModel is a lightweight in-memory Model useful for tests and the CLI's
// offline mode.
type MockModel struct {
	info      Info
	responses map[string]string
	err       error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a user message.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailWith makes every subsequent call return err.
func (m *MockModel) FailWith(err error) { m.err = err }

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if m.err != nil {
			errCh <- m.err
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		input := req.Messages[len(req.Messages)-1].Text

		full := m.responses[input]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		if req.Stream {
			for _, w := range strings.SplitAfter(full, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: w}:
				}
			}
		}

		respCh <- Response{Text: full, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

package generator

import (
	"github.com/hupe1980/turnmesh/internal/util"
)

// Instruction is either a static template or a dynamic provider. Templates
// are rendered against TemplateData.
type Instruction struct {
	text     string
	provider func(*Request) (string, error)
}

// NewInstructionFromText creates an Instruction from a text/template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromFunc creates an Instruction computed per request.
func NewInstructionFromFunc(f func(*Request) (string, error)) Instruction {
	return Instruction{provider: f}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for req.
func (i Instruction) Resolve(req *Request) (string, error) {
	if i.provider != nil {
		return i.provider(req)
	}
	return util.RenderTemplate(i.text, TemplateData(req))
}

// TemplateData exposes a request to templates: .utterance, .session_id,
// .turn_index, .previous_responder, .metadata, .annotations (usable values
// only) and .response (prompt phase only).
func TemplateData(req *Request) map[string]any {
	data := map[string]any{}
	if req == nil || req.Turn == nil {
		return data
	}

	t := req.Turn
	annotations := make(map[string]any, len(t.Annotations))
	for _, name := range t.Annotations.Names() {
		if v, ok := t.Annotations.Value(name); ok {
			annotations[name] = v
		}
	}

	data["utterance"] = t.Utterance
	data["session_id"] = t.SessionID
	data["turn_index"] = t.Index
	data["previous_responder"] = t.PreviousResponder
	data["metadata"] = t.Metadata
	data["annotations"] = annotations

	if req.Response != nil {
		data["response"] = req.Response.Text
	}

	return data
}

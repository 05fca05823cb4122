package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Turn is the shared context of one request/response cycle. Annotations are
// written by the orchestrator only, between phases; producers read them.
type Turn struct {
	ID                string
	SessionID         string
	Index             int
	Utterance         string
	Metadata          map[string]string
	Annotations       Results
	PreviousResponder string
	PreviousPrompter  string
	Deadline          time.Time
}

// Annotation returns the value an annotator produced for this turn.
func (t *Turn) Annotation(name string) (any, bool) {
	if t == nil {
		return nil, false
	}
	return t.Annotations.Value(name)
}

// Remaining returns the time left until the turn deadline. A zero deadline
// means timeouts are disabled and Remaining reports a very long duration.
func (t *Turn) Remaining() time.Duration {
	if t == nil || t.Deadline.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Until(t.Deadline)
}

// NewID returns a random identifier for turns and requests.
func NewID() string { return uuid.NewString() }

// AwaitAnnotation is like Annotation but waits for an annotator that was
// released early, until ctx ends.
func (t *Turn) AwaitAnnotation(ctx context.Context, name string) (any, bool) {
	if t == nil {
		return nil, false
	}
	o, ok := t.Annotations[name]
	if !ok || !o.OK() {
		return nil, false
	}
	return o.Await(ctx), true
}

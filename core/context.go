package core

import "context"

type turnKey struct{}

// WithTurn returns a context carrying t. The orchestrator uses it to expose
// the current turn to annotator operations, whose signature only carries
// their dependency inputs.
func WithTurn(ctx context.Context, t *Turn) context.Context {
	return context.WithValue(ctx, turnKey{}, t)
}

// TurnFromContext returns the turn stored by WithTurn, or nil.
func TurnFromContext(ctx context.Context) *Turn {
	t, _ := ctx.Value(turnKey{}).(*Turn)
	return t
}

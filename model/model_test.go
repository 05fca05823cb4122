package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hello", "hi there friend")

	for _, stream := range []bool{false, true} {
		resp, err := Collect(context.Background(), m, Request{
			Messages: []Message{{Role: RoleUser, Text: "hello"}},
			Stream:   stream,
		})
		require.NoError(t, err)
		assert.Equal(t, "hi there friend", resp.Text)
		assert.Equal(t, "stop", resp.FinishReason)
		assert.False(t, resp.Partial)
	}
}

func TestCollect_Errors(t *testing.T) {
	m := NewMockModel("mock")

	_, err := Collect(context.Background(), m, Request{})
	assert.Error(t, err)

	boom := errors.New("quota exceeded")
	m.FailWith(boom)
	_, err = Collect(context.Background(), m, Request{Messages: []Message{{Role: RoleUser, Text: "x"}}})
	assert.ErrorIs(t, err, boom)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errCh := make(chan error)
	close(out)
	close(errCh)
	return out, errCh
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestCollect_NoFinalResponse(t *testing.T) {
	_, err := Collect(context.Background(), silentModel{}, Request{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestCollect_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := blockingModel{}
	_, err := Collect(ctx, block, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingModel struct{}

func (blockingModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	return make(chan Response), make(chan error)
}

func (blockingModel) Info() Info { return Info{Name: "blocking"} }

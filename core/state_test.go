package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherState struct {
	City  string `json:"city"`
	Asked int    `json:"asked"`
}

func TestState_RoundTrip(t *testing.T) {
	st, err := NewState("weather", 2, weatherState{City: "Oslo", Asked: 1})
	require.NoError(t, err)
	assert.Equal(t, "weather", st.Producer)

	var got weatherState
	require.NoError(t, st.Decode(2, &got))
	assert.Equal(t, weatherState{City: "Oslo", Asked: 1}, got)
}

func TestState_VersionMismatch(t *testing.T) {
	st, err := NewState("weather", 1, weatherState{City: "Oslo"})
	require.NoError(t, err)

	var got weatherState
	err = st.Decode(2, &got)
	assert.ErrorIs(t, err, ErrStateVersion)
}

func TestState_EncodeError(t *testing.T) {
	_, err := NewState("bad", 1, make(chan int))
	assert.Error(t, err)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	st, err := NewState("weather", 1, weatherState{City: "Oslo"})
	require.NoError(t, err)

	snap := NewSnapshot()
	snap.ActiveResponder = "weather"
	snap.States["weather"] = st

	clone := snap.Clone()
	clone.States["weather"].Data[2] = 'X'
	clone.States["news"] = State{Producer: "news"}

	orig, ok := snap.State("weather")
	require.True(t, ok)
	assert.JSONEq(t, `{"city":"Oslo","asked":0}`, string(orig.Data))
	_, ok = snap.State("news")
	assert.False(t, ok)

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Clone())
	_, ok = nilSnap.State("weather")
	assert.False(t, ok)
}

func TestSnapshot_JSON(t *testing.T) {
	st, err := NewState("weather", 3, weatherState{City: "Rome", Asked: 2})
	require.NoError(t, err)

	snap := NewSnapshot()
	snap.TurnIndex = 4
	snap.ActivePrompter = "news"
	snap.States["weather"] = st

	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 4, back.TurnIndex)
	assert.Equal(t, "news", back.ActivePrompter)

	var ws weatherState
	require.NoError(t, back.States["weather"].Decode(3, &ws))
	assert.Equal(t, "Rome", ws.City)
}

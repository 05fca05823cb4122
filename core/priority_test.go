package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityLevel_Order(t *testing.T) {
	ordered := []PriorityLevel{
		PriorityNone,
		PriorityUniversalFallback,
		PriorityWeakContinue,
		PriorityCanStart,
		PriorityStrongContinue,
		PriorityForceStart,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1], ordered[i])
	}
}

func TestPriorityLevel_IsDecisive(t *testing.T) {
	assert.True(t, PriorityForceStart.IsDecisive())
	assert.True(t, PriorityStrongContinue.IsDecisive())
	assert.False(t, PriorityCanStart.IsDecisive())
	assert.False(t, PriorityWeakContinue.IsDecisive())
	assert.False(t, PriorityUniversalFallback.IsDecisive())
	assert.False(t, PriorityNone.IsDecisive())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" CAN_START ")
	require.NoError(t, err)
	assert.Equal(t, PriorityCanStart, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)

	assert.Equal(t, "priority(42)", PriorityLevel(42).String())
}

func TestPriorityLevel_JSON(t *testing.T) {
	type wrapper struct {
		Priority PriorityLevel `json:"priority"`
	}

	b, err := json.Marshal(wrapper{Priority: PriorityStrongContinue})
	require.NoError(t, err)
	assert.JSONEq(t, `{"priority":"strong_continue"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"weak_continue"}`), &w))
	assert.Equal(t, PriorityWeakContinue, w.Priority)

	assert.Error(t, json.Unmarshal([]byte(`{"priority":"loud"}`), &w))
}

func TestCandidate_Rankable(t *testing.T) {
	var nilCand *Candidate
	assert.False(t, nilCand.Rankable())
	assert.False(t, (&Candidate{Priority: PriorityNone, Text: "hi"}).Rankable())
	assert.False(t, (&Candidate{Priority: PriorityCanStart}).Rankable())
	assert.True(t, (&Candidate{Priority: PriorityUniversalFallback, Text: "hi"}).Rankable())

	c, ok := AsCandidate(&Candidate{Producer: "p"})
	require.True(t, ok)
	assert.Equal(t, "p", c.Producer)

	_, ok = AsCandidate("not a candidate")
	assert.False(t, ok)

	_, ok = AsCandidate((*Candidate)(nil))
	assert.False(t, ok)
}

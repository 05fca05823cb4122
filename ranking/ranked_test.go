package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/core"
)

func cand(producer string, prio core.PriorityLevel) *core.Candidate {
	return &core.Candidate{Producer: producer, Priority: prio, Text: producer}
}

func producers(cs []*core.Candidate) []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Producer)
	}
	return names
}

func TestRank_Ordering(t *testing.T) {
	results := core.Results{
		"fallback": core.Success(cand("fallback", core.PriorityUniversalFallback), 0),
		"news":     core.Success(cand("news", core.PriorityCanStart), 0),
		"weather":  core.Success(cand("weather", core.PriorityCanStart), 0),
		"movies":   core.Success(cand("movies", core.PriorityStrongContinue), 0),
		"silent":   core.Success(cand("silent", core.PriorityNone), 0),
		"late":     core.Missing(nil),
		"gone":     core.Cancelled(),
		"odd":      core.Success("not a candidate", 0),
	}

	t.Run("registration order breaks ties", func(t *testing.T) {
		r := Rank(results, RankOptions{Order: []string{"weather", "news", "movies", "fallback"}})
		assert.Equal(t, []string{"movies", "weather", "news", "fallback"}, producers(r.Candidates()))
	})

	t.Run("active producer wins ties", func(t *testing.T) {
		r := Rank(results, RankOptions{Active: "news", Order: []string{"weather", "news"}})
		assert.Equal(t, []string{"movies", "news", "weather", "fallback"}, producers(r.Candidates()))
	})

	t.Run("unlisted producers sort by name", func(t *testing.T) {
		r := Rank(results, RankOptions{})
		assert.Equal(t, []string{"movies", "news", "weather", "fallback"}, producers(r.Candidates()))
	})

	r := Rank(results, RankOptions{})
	assert.Len(t, r.Outcomes(), len(results))
}

func TestRankedResults_PopAndRemove(t *testing.T) {
	r := Rank(core.Results{
		"a": core.Success(cand("a", core.PriorityForceStart), 0),
		"b": core.Success(cand("b", core.PriorityCanStart), 0),
		"c": core.UsedDefault(cand("c", core.PriorityUniversalFallback), nil),
	}, RankOptions{})

	require.Equal(t, 3, r.Len())
	assert.Equal(t, "a", r.Top().Producer)

	assert.True(t, r.Remove("b"))
	assert.False(t, r.Remove("b"))

	assert.Equal(t, "a", r.Pop().Producer)
	assert.Equal(t, "c", r.Pop().Producer)
	assert.Nil(t, r.Pop())
	assert.Nil(t, r.Top())
	assert.Equal(t, 0, r.Len())
}

func TestRank_FillsMissingProducer(t *testing.T) {
	r := Rank(core.Results{
		"anon": core.Success(&core.Candidate{Priority: core.PriorityCanStart, Text: "hello"}, 0),
	}, RankOptions{})

	require.Equal(t, 1, r.Len())
	assert.Equal(t, "anon", r.Top().Producer)
}

func TestRank_Deterministic(t *testing.T) {
	results := core.Results{}
	for _, n := range []string{"e", "d", "c", "b", "a"} {
		results[n] = core.Success(cand(n, core.PriorityCanStart), 0)
	}

	want := producers(Rank(results, RankOptions{Order: []string{"c", "a"}}).Candidates())
	assert.Equal(t, []string{"c", "a", "b", "d", "e"}, want)

	for i := 0; i < 10; i++ {
		assert.Equal(t, want, producers(Rank(results, RankOptions{Order: []string{"c", "a"}}).Candidates()))
	}
}

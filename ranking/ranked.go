package ranking

import (
	"sort"

	"github.com/hupe1980/turnmesh/core"
)

// RankOptions controls tie-breaking among candidates of equal priority.
type RankOptions struct {
	// Active is the producer that was active last turn. It wins ties.
	Active string
	// Order is the declared producer order. Earlier producers win remaining
	// ties; producers not listed come last, by name.
	Order []string
}

// RankedResults holds the candidates of one phase in descending priority
// along with every producer's outcome.
type RankedResults struct {
	candidates []*core.Candidate
	outcomes   core.Results
}

// Rank collects the rankable candidates from results and sorts them.
func Rank(results core.Results, opts RankOptions) *RankedResults {
	pos := make(map[string]int, len(opts.Order))
	for i, n := range opts.Order {
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}

	var candidates []*core.Candidate

	for _, name := range results.Names() {
		o := results[name]
		if !o.OK() {
			continue
		}
		c, ok := core.AsCandidate(o.Value)
		if !ok || !c.Rankable() {
			continue
		}
		if c.Producer == "" {
			cc := *c
			cc.Producer = name
			c = &cc
		}
		candidates = append(candidates, c)
	}

	rank := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		return len(pos)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if aActive, bActive := a.Producer == opts.Active, b.Producer == opts.Active; aActive != bActive {
			return aActive
		}
		if ra, rb := rank(a.Producer), rank(b.Producer); ra != rb {
			return ra < rb
		}
		return a.Producer < b.Producer
	})

	return &RankedResults{candidates: candidates, outcomes: results}
}

// Len returns the number of remaining candidates.
func (r *RankedResults) Len() int { return len(r.candidates) }

// Top returns the best remaining candidate, or nil.
func (r *RankedResults) Top() *core.Candidate {
	if len(r.candidates) == 0 {
		return nil
	}
	return r.candidates[0]
}

// Pop removes and returns the best remaining candidate, or nil.
func (r *RankedResults) Pop() *core.Candidate {
	c := r.Top()
	if c != nil {
		r.candidates = r.candidates[1:]
	}
	return c
}

// Remove drops the named producer's candidate. It reports whether one was removed.
func (r *RankedResults) Remove(producer string) bool {
	for i, c := range r.candidates {
		if c.Producer == producer {
			r.candidates = append(r.candidates[:i:i], r.candidates[i+1:]...)
			return true
		}
	}
	return false
}

// Candidates returns the remaining candidates, best first.
func (r *RankedResults) Candidates() []*core.Candidate {
	return append([]*core.Candidate(nil), r.candidates...)
}

// Outcomes returns the outcome of every producer that ran in the phase,
// including those whose candidates were removed.
func (r *RankedResults) Outcomes() core.Results { return r.outcomes }

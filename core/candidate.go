package core

// Candidate is one producer's proposal for the turn's response or prompt.
type Candidate struct {
	Producer      string
	Priority      PriorityLevel
	Text          string
	NeedsFollowUp bool
	// EndSession asks the front end to close the conversation after this turn.
	EndSession bool
	// State is the producer's proposed state if the candidate is chosen.
	State *State
	// Entity optionally names what the candidate talks about.
	Entity string
}

// Rankable reports whether the candidate can compete for selection.
func (c *Candidate) Rankable() bool {
	return c != nil && c.Priority > PriorityNone && c.Text != ""
}

// AsCandidate extracts a candidate from a task value.
func AsCandidate(v any) (*Candidate, bool) {
	c, ok := v.(*Candidate)
	return c, ok && c != nil
}

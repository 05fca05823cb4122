package testutil

import (
	"github.com/hupe1980/turnmesh/core"
)

// CandidateBuilder provides a fluent helper for constructing candidates in tests.
// Example:
//
//	c := NewCandidateBuilder("news").Priority(core.PriorityCanStart).Text("hi").FollowUp().Build()
//
// Chain only the parts you need; the default priority is CanStart.
type CandidateBuilder struct {
	c core.Candidate
}

// NewCandidateBuilder creates a builder for a candidate of producer.
func NewCandidateBuilder(producer string) *CandidateBuilder {
	return &CandidateBuilder{c: core.Candidate{Producer: producer, Priority: core.PriorityCanStart}}
}

// Priority sets the candidate priority (chainable).
func (b *CandidateBuilder) Priority(p core.PriorityLevel) *CandidateBuilder {
	b.c.Priority = p
	return b
}

// Text sets the candidate text (chainable).
func (b *CandidateBuilder) Text(t string) *CandidateBuilder { b.c.Text = t; return b }

// FollowUp marks the candidate as needing a follow-up prompt (chainable).
func (b *CandidateBuilder) FollowUp() *CandidateBuilder { b.c.NeedsFollowUp = true; return b }

// EndSession marks the candidate as closing the session (chainable).
func (b *CandidateBuilder) EndSession() *CandidateBuilder { b.c.EndSession = true; return b }

// Entity sets the entity the candidate talks about (chainable).
func (b *CandidateBuilder) Entity(e string) *CandidateBuilder { b.c.Entity = e; return b }

// State sets the state proposed by the candidate (chainable).
func (b *CandidateBuilder) State(st core.State) *CandidateBuilder {
	st = st.Clone()
	b.c.State = &st
	return b
}

// Build returns a fresh *core.Candidate.
func (b *CandidateBuilder) Build() *core.Candidate {
	c := b.c
	if b.c.State != nil {
		st := b.c.State.Clone()
		c.State = &st
	}
	return &c
}

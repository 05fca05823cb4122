package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is a producer-owned blob carried from one turn to the next. The
// orchestrator never looks inside Data; it only routes states between
// producers and the snapshot store. Version lets each producer evolve its
// schema explicitly.
type State struct {
	Producer string          `json:"producer"`
	Version  int             `json:"version"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewState encodes v as the state of producer at the given schema version.
func NewState(producer string, version int, v any) (State, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return State{}, fmt.Errorf("encode state for %s: %w", producer, err)
	}
	return State{Producer: producer, Version: version, Data: data}, nil
}

// Decode unmarshals the state into v after checking the schema version.
func (s State) Decode(version int, v any) error {
	if s.Version != version {
		return fmt.Errorf("%w: %s has v%d, want v%d", ErrStateVersion, s.Producer, s.Version, version)
	}
	if len(s.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("decode state for %s: %w", s.Producer, err)
	}
	return nil
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	c := s
	if s.Data != nil {
		c.Data = append(json.RawMessage(nil), s.Data...)
	}
	return c
}

// Snapshot is everything the orchestrator carries between two turns of a
// session. Snapshots are treated as immutable: each turn produces a new one.
type Snapshot struct {
	TurnIndex       int              `json:"turn_index"`
	ActiveResponder string           `json:"active_responder,omitempty"`
	ActivePrompter  string           `json:"active_prompter,omitempty"`
	States          map[string]State `json:"states"`
	Updated         time.Time        `json:"updated"`
}

// NewSnapshot creates an empty snapshot for turn zero.
func NewSnapshot() *Snapshot {
	return &Snapshot{States: map[string]State{}, Updated: time.Now()}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.States = make(map[string]State, len(s.States))
	for k, v := range s.States {
		c.States[k] = v.Clone()
	}
	return &c
}

// State returns the stored state for a producer.
func (s *Snapshot) State(producer string) (State, bool) {
	if s == nil {
		return State{}, false
	}
	st, ok := s.States[producer]
	return st, ok
}

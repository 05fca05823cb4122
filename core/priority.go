package core

import (
	"fmt"
	"strings"
)

// PriorityLevel ranks competing candidates. Higher values win.
type PriorityLevel int

const (
	// PriorityNone means the producer has nothing to say this turn.
	PriorityNone PriorityLevel = iota
	// PriorityUniversalFallback is reserved for the always-available fallback
	// producer. It beats None and nothing else, and is never decisive.
	PriorityUniversalFallback
	// PriorityWeakContinue continues an ongoing topic but yields to anything else.
	PriorityWeakContinue
	// PriorityCanStart may start a new topic.
	PriorityCanStart
	// PriorityStrongContinue continues an ongoing topic with confidence.
	PriorityStrongContinue
	// PriorityForceStart takes over the conversation.
	PriorityForceStart
)

var priorityNames = map[PriorityLevel]string{
	PriorityNone:              "none",
	PriorityUniversalFallback: "universal_fallback",
	PriorityWeakContinue:      "weak_continue",
	PriorityCanStart:          "can_start",
	PriorityStrongContinue:    "strong_continue",
	PriorityForceStart:        "force_start",
}

func (p PriorityLevel) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// IsDecisive reports whether a candidate at this level may end a phase early.
func (p PriorityLevel) IsDecisive() bool {
	return p == PriorityStrongContinue || p == PriorityForceStart
}

// ParsePriority converts a name such as "can_start" or "CAN_START" to a level.
func ParsePriority(s string) (PriorityLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == norm {
			return p, nil
		}
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p PriorityLevel) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PriorityLevel) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

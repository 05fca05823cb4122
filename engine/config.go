package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/turnmesh/generator"
)

// DefaultApologyText is returned to the user when a turn fails fatally.
const DefaultApologyText = "Sorry, I'm having a really hard time right now. I have to go, but I hope you enjoy the rest of your day!"

// Config holds the orchestration policy of an Engine.
//
// Timeouts compose: every phase deadline is the smaller of its own timeout
// and the time remaining until the turn deadline. With DisableTimeouts set,
// phases only end when their tasks finish or the caller's context is done,
// which is useful when stepping through a turn in a debugger.
type Config struct {
	// TurnTimeout bounds the complete turn.
	TurnTimeout time.Duration `json:"turn_timeout" yaml:"turn_timeout"`

	// AnnotationTimeout bounds the annotation phase.
	AnnotationTimeout time.Duration `json:"annotation_timeout" yaml:"annotation_timeout"`

	// ResponseTimeout bounds the response phase.
	ResponseTimeout time.Duration `json:"response_timeout" yaml:"response_timeout"`

	// PromptTimeout bounds the prompt phase.
	PromptTimeout time.Duration `json:"prompt_timeout" yaml:"prompt_timeout"`

	// StateUpdateTimeout bounds the state update phase.
	StateUpdateTimeout time.Duration `json:"state_update_timeout" yaml:"state_update_timeout"`

	// DisableTimeouts turns every deadline off.
	DisableTimeouts bool `json:"disable_timeouts" yaml:"disable_timeouts"`

	// ApologyText is the reply of a fatal turn.
	ApologyText string `json:"apology_text" yaml:"apology_text"`

	// FallbackProducer names the universal fallback. It may win both the
	// response and the prompt of one turn.
	FallbackProducer string `json:"fallback_producer" yaml:"fallback_producer"`

	// Bootstrap lists the producers that start from their bootstrap state on
	// turn zero. Empty means every registered producer.
	Bootstrap []string `json:"bootstrap,omitempty" yaml:"bootstrap,omitempty"`

	// RebootstrapMissing lets bootstrap producers that lost their state rejoin
	// on later turns instead of staying silent for the rest of the session.
	RebootstrapMissing bool `json:"rebootstrap_missing" yaml:"rebootstrap_missing"`

	// Protected producers are never cancelled early.
	Protected []string `json:"protected,omitempty" yaml:"protected,omitempty"`

	// ProtectedUnlessNoFollowUp producers are cancelled early only when the
	// decisive candidate needs no follow-up prompt.
	ProtectedUnlessNoFollowUp []string `json:"protected_unless_no_follow_up,omitempty" yaml:"protected_unless_no_follow_up,omitempty"`

	// SubmissionHints lists producers submitted first in the response and
	// prompt phases, after the previously active one. Order only affects how
	// soon a decisive candidate is likely to arrive, never the ranking.
	SubmissionHints []string `json:"submission_hints,omitempty" yaml:"submission_hints,omitempty"`

	// SlowAnnotators may be released before they finish when nothing else
	// in the annotation graph is pending.
	SlowAnnotators []string `json:"slow_annotators,omitempty" yaml:"slow_annotators,omitempty"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TurnTimeout:        7 * time.Second,
		AnnotationTimeout:  3 * time.Second,
		ResponseTimeout:    3 * time.Second,
		PromptTimeout:      2 * time.Second,
		StateUpdateTimeout: 1 * time.Second,
		ApologyText:        DefaultApologyText,
		FallbackProducer:   generator.DefaultFallbackName,
	}
}

// Validate reports configuration errors. Phase timeouts must be positive and
// must not exceed TurnTimeout.
func (c Config) Validate() error {
	var errs []error

	if !c.DisableTimeouts {
		if c.TurnTimeout <= 0 {
			errs = append(errs, fmt.Errorf("turn_timeout must be positive, got %s", c.TurnTimeout))
		}

		phases := []struct {
			name string
			d    time.Duration
		}{
			{"annotation_timeout", c.AnnotationTimeout},
			{"response_timeout", c.ResponseTimeout},
			{"prompt_timeout", c.PromptTimeout},
			{"state_update_timeout", c.StateUpdateTimeout},
		}

		for _, p := range phases {
			switch {
			case p.d <= 0:
				errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.d))
			case c.TurnTimeout > 0 && p.d > c.TurnTimeout:
				errs = append(errs, fmt.Errorf("%s (%s) exceeds turn_timeout (%s)", p.name, p.d, c.TurnTimeout))
			}
		}
	}

	if c.ApologyText == "" {
		errs = append(errs, errors.New("apology_text must not be empty"))
	}

	return errors.Join(errs...)
}

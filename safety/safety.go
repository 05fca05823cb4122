// Package safety provides content-safety checkers for candidate texts.
package safety

import (
	"context"
	"strings"
	"unicode"

	"github.com/hupe1980/turnmesh/core"
)

// Blocklist flags texts containing any listed word or phrase. Matching is
// case-insensitive and on whole words, so "class" does not match "ass".
type Blocklist struct {
	phrases [][]string
}

var _ core.SafetyChecker = (*Blocklist)(nil)

// NewBlocklist creates a checker for the given words or phrases.
func NewBlocklist(words ...string) *Blocklist {
	b := &Blocklist{}
	for _, w := range words {
		if toks := tokenize(w); len(toks) > 0 {
			b.phrases = append(b.phrases, toks)
		}
	}
	return b
}

// Len returns the number of phrases.
func (b *Blocklist) Len() int { return len(b.phrases) }

// IsOffensive implements core.SafetyChecker.
func (b *Blocklist) IsOffensive(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	toks := tokenize(text)
	for _, p := range b.phrases {
		if containsPhrase(toks, p) {
			return true, nil
		}
	}

	return false, nil
}

// Check asks c about text and fails closed: a checker error counts as
// offensive. A nil checker accepts everything.
func Check(ctx context.Context, c core.SafetyChecker, text string) (bool, error) {
	if c == nil {
		return false, nil
	}
	offensive, err := c.IsOffensive(ctx, text)
	if err != nil {
		return true, err
	}
	return offensive, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsPhrase(toks, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(toks); i++ {
		match := true
		for j, w := range phrase {
			if toks[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

package util

import "strings"

// EnsureSentence trims s and appends a period unless it already ends with
// sentence punctuation. Empty input stays empty.
func EnsureSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ';', ':':
		return s
	case ',':
		return s[:len(s)-1] + "."
	}
	return s + "."
}

// JoinSentences concatenates response and prompt text into one utterance,
// inserting sentence-boundary punctuation between parts that lack it.
// Empty parts are skipped.
func JoinSentences(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	for i := 0; i < len(kept)-1; i++ {
		kept[i] = EnsureSentence(kept[i])
	}

	return strings.Join(kept, " ")
}

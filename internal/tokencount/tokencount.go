// Package tokencount implements the token counter (C1): per-model
// tokenization estimates and budget-fitting with a capsule degrade
// pass before outright dropping items.
//
// Grounded on the teacher's internal/context/smart.go estimateTokens,
// generalized from a single entity-metadata heuristic into a
// per-model profile table with an explicit stdlib-only fallback.
package tokencount

import "strings"

// Profile describes how a model's tokenizer is approximated: a
// constant overhead per item (for role/metadata wrapping) plus a
// chars-per-token ratio applied to the item's text.
type Profile struct {
	Overhead      int
	CharsPerToken float64
}

// fallbackProfile is used for any model not present in Profiles; 4
// chars/token is the commonly cited approximation for English prose
// and source code alike (spec.md §4.1).
var fallbackProfile = Profile{Overhead: 8, CharsPerToken: 4.0}

// Profiles holds per-model tokenization profiles. Real deployments
// would refine these against the provider's own tokenizer output; the
// ratios here are deliberately conservative estimates.
var Profiles = map[string]Profile{
	"default":         {Overhead: 8, CharsPerToken: 4.0},
	"gpt-4o":          {Overhead: 7, CharsPerToken: 3.8},
	"gpt-4o-mini":     {Overhead: 7, CharsPerToken: 3.8},
	"claude-3-5-sonnet": {Overhead: 6, CharsPerToken: 3.6},
	"claude-3-opus":    {Overhead: 6, CharsPerToken: 3.6},
	"gemini-1.5-pro":   {Overhead: 6, CharsPerToken: 4.2},
}

// profileFor returns the profile for model, falling back to the
// generic 4-chars-per-token estimate for unknown models.
func profileFor(model string) Profile {
	if p, ok := Profiles[strings.ToLower(strings.TrimSpace(model))]; ok {
		return p
	}
	return fallbackProfile
}

// Count returns the estimated token count for text under model's
// profile.
func Count(text, model string) int {
	if text == "" {
		return 0
	}
	p := profileFor(model)
	cleaned := dropTestComments(text)
	n := int(float64(len(cleaned))/p.CharsPerToken + 0.999)
	return n + p.Overhead
}

// dropTestComments strips `//`-style comment lines that look like test
// scaffolding annotations before counting, per spec.md §4.1 ("test
// comments are dropped before code"). This is a best-effort textual
// pass, not a parser: it only strips whole comment-only lines, never
// code.
func dropTestComments(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") && looksLikeTestComment(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func looksLikeTestComment(comment string) bool {
	lower := strings.ToLower(comment)
	for _, marker := range []string{"// test", "// arrange", "// act", "// assert", "// given", "// when", "// then"} {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

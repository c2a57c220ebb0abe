// Package intent implements the intent classifier (C2): a
// deterministic, lightweight keyword-and-file-type classifier mapping
// a query to one of six retrieval intents with a confidence score.
//
// Grounded on the teacher's internal/context/smart.go ExtractIntent /
// detectActionPattern / extractKeywordsWithIdentifiers /
// looksLikeIdentifier / extractEntityMentions, generalized from
// "action pattern for a task description" into "retrieval intent for
// a query", with an explicit tie-break order and normalized confidence
// as spec.md §4.2 requires.
package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind enumerates the retrieval intents a query can be classified
// into. Priority order (highest first) breaks ties when a query scores
// equally across kinds: Symbol > API > Config > Incident > Refactor >
// Search.
type Kind string

const (
	Symbol   Kind = "symbol"
	Config   Kind = "config"
	API      Kind = "api"
	Incident Kind = "incident"
	Refactor Kind = "refactor"
	Search   Kind = "search"
)

// priority gives each Kind's tie-break rank; lower wins ties.
var priority = map[Kind]int{
	Symbol:   0,
	API:      1,
	Config:   2,
	Incident: 3,
	Refactor: 4,
	Search:   5,
}

// Result is the output of Classify: the chosen intent, a confidence in
// [0,1], the entity mentions found in the query, and the policy names
// suggested for this intent (consumed by the policy gate, C3).
type Result struct {
	Intent            Kind
	Confidence        float64
	Entities          []string
	SuggestedPolicies []string
}

// keywordSets maps each intent kind to the terms whose presence in a
// lowercased query contributes a vote for that kind.
var keywordSets = map[Kind][]string{
	Symbol: {
		"function", "func", "method", "class", "struct", "interface",
		"definition", "declared", "implementation of", "where is",
		"signature", "caller", "callers", "callee",
	},
	Config: {
		"config", "configuration", "setting", "env", "environment variable",
		"default", "yaml", "toml", "flag", "option", ".env",
	},
	API: {
		"endpoint", "route", "handler", "api", "request", "response",
		"rest", "grpc", "controller", "middleware",
	},
	Incident: {
		"error", "panic", "crash", "bug", "fail", "failing", "exception",
		"incident", "outage", "regression", "broken", "traceback",
		"stack trace",
	},
	Refactor: {
		"refactor", "restructure", "reorganize", "clean up", "cleanup",
		"simplify", "rename", "extract", "dedupe", "deduplicate",
	},
}

// fileTypeCues maps a substring appearing in the query to the kind it
// nudges toward, modeling the "file-type cues" spec.md §4.2 calls for
// (e.g. a query naming a .env/.yaml file reads as config even without
// a config keyword).
var fileTypeCues = map[string]Kind{
	".env":    Config,
	".yaml":   Config,
	".yml":    Config,
	".toml":   Config,
	".proto":  API,
	"_test.go": Incident,
}

var (
	camelCase = regexp.MustCompile(`[A-Z][a-z]+(?:[A-Z][a-z]+)+`)
	snakeCase = regexp.MustCompile(`[a-z]+(?:_[a-z]+)+`)
	codeLike  = regexp.MustCompile(`[a-z]+[A-Z][a-zA-Z]*`)
)

// Classify maps query to a Result. It is a pure function: identical
// input always yields an identical Result.
func Classify(query string) Result {
	lower := strings.ToLower(strings.TrimSpace(query))

	scores := make(map[Kind]int, len(keywordSets))
	for kind, words := range keywordSets {
		for _, w := range words {
			if strings.Contains(lower, w) {
				scores[kind]++
			}
		}
	}
	for cue, kind := range fileTypeCues {
		if strings.Contains(lower, cue) {
			scores[kind] += 2
		}
	}

	entities := extractEntityMentions(query)
	if len(entities) > 0 {
		scores[Symbol] += len(entities)
	}

	best, total := pickBest(scores)

	var confidence float64
	if total == 0 {
		best = Search
		confidence = 0.3
	} else {
		confidence = float64(scores[best]) / float64(total)
		// Floor so a single weak signal still registers above chance,
		// and cap just under 1.0 so a unanimous vote isn't reported as
		// absolute certainty.
		if confidence < 0.4 {
			confidence = 0.4
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
	}

	return Result{
		Intent:            best,
		Confidence:        confidence,
		Entities:          entities,
		SuggestedPolicies: suggestedPolicies(best),
	}
}

// pickBest returns the highest-scoring kind, breaking ties by
// priority, and the sum of all scores (used as the confidence
// denominator).
func pickBest(scores map[Kind]int) (Kind, int) {
	total := 0
	best := Search
	bestScore := -1
	for _, kind := range []Kind{Symbol, API, Config, Incident, Refactor, Search} {
		s := scores[kind]
		total += s
		if s > bestScore || (s == bestScore && priority[kind] < priority[best]) {
			bestScore = s
			best = kind
		}
	}
	return best, total
}

func suggestedPolicies(k Kind) []string {
	switch k {
	case Symbol:
		return []string{"symbol-trace"}
	case Config:
		return []string{"config-lookup"}
	case API:
		return []string{"api-surface"}
	case Incident:
		return []string{"incident-callers"}
	case Refactor:
		return []string{"refactor-neighborhood"}
	default:
		return []string{"broad-search"}
	}
}

// extractEntityMentions finds potential code entity names in the
// query: CamelCase, snake_case, and mixed-case code-like identifiers.
func extractEntityMentions(query string) []string {
	var mentions []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{camelCase, snakeCase, codeLike} {
		for _, match := range re.FindAllString(query, -1) {
			if !seen[match] {
				seen[match] = true
				mentions = append(mentions, match)
			}
		}
	}
	return mentions
}

// LooksLikeIdentifier reports whether word has the shape of a code
// identifier (mixed case or underscores), used by callers that want to
// weight identifier-like query terms more heavily elsewhere in the
// pipeline (e.g. seed mixing).
func LooksLikeIdentifier(word string) bool {
	if strings.Contains(word, "_") {
		return true
	}
	for _, r := range word {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

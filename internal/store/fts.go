package store

import "strings"

// codeStopWords filters generic code-search noise terms, carried over
// from the teacher's fts.go (same list, same rationale: these terms
// add no discriminating signal against a codebase).
var codeStopWords = map[string]bool{
	"code": true, "source": true, "file": true, "function": true,
	"method": true, "class": true, "implement": true, "feature": true,
	"new": true, "existing": true, "current": true, "project": true,
	"codebase": true, "logic": true, "system": true, "module": true,
	"component": true,
}

// buildFTSQuery converts a user query into MySQL NATURAL LANGUAGE MODE
// FULLTEXT syntax, stripping punctuation that would otherwise break
// the match and dropping code-generic stopwords.
func buildFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	words := strings.Fields(query)
	var parts []string
	for _, w := range words {
		w = cleanFTSWord(w)
		if w == "" {
			continue
		}
		if codeStopWords[strings.ToLower(w)] {
			continue
		}
		parts = append(parts, w)
	}
	if len(parts) == 0 {
		for _, w := range words {
			if w = cleanFTSWord(w); w != "" {
				return w
			}
		}
		return query
	}
	return strings.Join(parts, " ")
}

var ftsReplacer = strings.NewReplacer(
	`"`, ``, `'`, ``, `(`, ``, `)`, ``, `*`, ``, `+`, ``, `-`, ``, `@`, ``, `<`, ``, `>`, ``, `~`, ``,
)

func cleanFTSWord(s string) string {
	return strings.TrimSpace(ftsReplacer.Replace(s))
}

// normalizeBM25Score rescales a raw FULLTEXT relevance score into
// roughly [0,1], matching the teacher's sigmoid-like normalization in
// fts.go's normalizeBM25Score.
func normalizeBM25Score(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 5.0)
}

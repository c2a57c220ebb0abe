// Package policy implements the policy gate (C3): maps a classified
// intent (plus optional repo hints) to a Policy governing how deep and
// how wide retrieval is allowed to go.
//
// Grounded on the teacher's internal/config defaults pattern (a
// mandated default struct, merged with optional overrides) applied to
// spec.md §4.3's per-intent policy table.
package policy

import (
	"fmt"
	"strings"

	"github.com/anthropics/pampax/internal/intent"
)

// Policy bounds one assembly request's retrieval behavior. Fields are
// an enumerated, closed set — spec.md §9 calls for rejecting unknown
// fields rather than accepting a loose map.
type Policy struct {
	MaxDepth           int
	IncludeSymbols     bool
	IncludeFiles       bool
	IncludeContent     bool
	EarlyStopThreshold int
	SeedWeights        map[string]float64
}

// clampDepth and clampThreshold enforce spec.md §4.3's declared ranges.
func clampDepth(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}

func clampThreshold(t int) int {
	if t < 1 {
		return 1
	}
	if t > 10 {
		return 10
	}
	return t
}

// RepoHints carries repo-level signals that can adjust the intent's
// default policy (e.g. a monorepo hint widening maxDepth for incident
// queries).
type RepoHints struct {
	Monorepo bool
}

// defaults holds the mandated per-intent defaults from spec.md §4.3.
var defaults = map[intent.Kind]Policy{
	intent.Symbol: {
		MaxDepth: 3, IncludeSymbols: true, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 5,
		SeedWeights:         map[string]float64{"sym": 0.4, "lex": 0.3, "vec": 0.2, "graph": 0.1},
	},
	intent.Config: {
		MaxDepth: 1, IncludeSymbols: false, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 3,
		SeedWeights:         map[string]float64{"lex": 0.5, "sym": 0.3, "graph": 0.2},
	},
	intent.API: {
		MaxDepth: 2, IncludeSymbols: true, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 6,
		SeedWeights:         map[string]float64{"sym": 0.35, "lex": 0.25, "vec": 0.2, "graph": 0.2},
	},
	intent.Incident: {
		MaxDepth: 4, IncludeSymbols: true, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 8,
		SeedWeights:         map[string]float64{"graph": 0.35, "lex": 0.3, "sym": 0.2, "vec": 0.15},
	},
	intent.Refactor: {
		MaxDepth: 3, IncludeSymbols: true, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 6,
		SeedWeights:         map[string]float64{"sym": 0.3, "graph": 0.3, "lex": 0.2, "vec": 0.2},
	},
	intent.Search: {
		MaxDepth: 2, IncludeSymbols: false, IncludeFiles: true, IncludeContent: true,
		EarlyStopThreshold: 10,
		SeedWeights:         map[string]float64{"lex": 0.4, "vec": 0.4, "sym": 0.1, "graph": 0.1},
	},
}

// Select returns the Policy for (k, hints). Result is a copy; callers
// may not mutate the package-level defaults via the returned value's
// map since SeedWeights is copied on return.
func Select(k intent.Kind, hints RepoHints) Policy {
	base, ok := defaults[k]
	if !ok {
		base = defaults[intent.Search]
	}

	p := Policy{
		MaxDepth:           base.MaxDepth,
		IncludeSymbols:     base.IncludeSymbols,
		IncludeFiles:       base.IncludeFiles,
		IncludeContent:     base.IncludeContent,
		EarlyStopThreshold: base.EarlyStopThreshold,
		SeedWeights:        make(map[string]float64, len(base.SeedWeights)),
	}
	for k, v := range base.SeedWeights {
		p.SeedWeights[k] = v
	}

	if hints.Monorepo && k == intent.Incident {
		p.MaxDepth++
	}

	p.MaxDepth = clampDepth(p.MaxDepth)
	p.EarlyStopThreshold = clampThreshold(p.EarlyStopThreshold)
	return p
}

// String renders a compact identifier for the rendered bundle's
// "Policy" line: depth/early-stop bounds plus which content classes
// this policy admits, distinct from the intent name that selected it.
func (p Policy) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "depth=%d early-stop=%d", p.MaxDepth, p.EarlyStopThreshold)
	if p.IncludeSymbols {
		b.WriteString(" +symbols")
	}
	if p.IncludeFiles {
		b.WriteString(" +files")
	}
	if p.IncludeContent {
		b.WriteString(" +content")
	}
	return b.String()
}

// Package stopreason implements the stopping-reason engine (C9): an
// append-only session-scoped log of termination conditions, with a
// pure shouldStop() predicate and a human-readable explanation/
// recommendation attached to each recorded kind.
//
// Grounded on other_examples/57822454_mercator-hq-jupiter__pkg-evidence-
// types.go.go's MatchedRuleRecord (a rule-kind + severity + facts
// record pattern) applied to spec.md §4.9's ten stopping-reason kinds.
package stopreason

import (
	"fmt"

	"github.com/anthropics/pampax/internal/model"
)

// Engine accumulates StopConditions for one assembly session.
type Engine struct {
	conditions []model.StopCondition
}

// New constructs an empty Engine.
func New() *Engine {
	return &Engine{}
}

// Record appends a fully-formed condition, filling in its title,
// explanation, and recommendation from templates keyed by kind.
func (e *Engine) Record(kind model.StopKind, severity model.StopSeverity, phase model.SessionPhase, facts model.StopFacts) model.StopCondition {
	c := model.StopCondition{
		Kind:           kind,
		Severity:       severity,
		Facts:          facts,
		Phase:          phase,
		Title:          titleFor(kind),
		Explanation:    explanationFor(kind, facts),
		Recommendation: recommendationFor(kind),
	}
	e.conditions = append(e.conditions, c)
	return c
}

// Conditions returns every condition recorded so far, in recording
// order.
func (e *Engine) Conditions() []model.StopCondition {
	return append([]model.StopCondition(nil), e.conditions...)
}

// ShouldStop is the pure function spec.md §4.9 mandates: true iff any
// recorded condition carries high severity.
func (e *Engine) ShouldStop() bool {
	return ShouldStop(e.conditions)
}

// ShouldStop is the free-function form, usable without an Engine
// instance (e.g. against a Bundle.StoppingReasons read back later).
func ShouldStop(conditions []model.StopCondition) bool {
	for _, c := range conditions {
		if c.Severity == model.SeverityHigh {
			return true
		}
	}
	return false
}

// EnsureCompletedNormally appends StopCompletedNormally if no
// conditions were recorded at all, guaranteeing spec.md §8 testable
// property 7 ("the assembler cannot end with zero conditions").
func (e *Engine) EnsureCompletedNormally(phase model.SessionPhase) {
	if len(e.conditions) == 0 {
		e.Record(model.StopCompletedNormally, model.SeverityLow, phase, model.StopFacts{})
	}
}

// Summary aggregates the session's conditions by kind and severity.
type Summary struct {
	Total         int
	CountsByKind  map[model.StopKind]int
	HighSeverity  int
	MedSeverity   int
	LowSeverity   int
}

// Summarize produces the session summary spec.md §4.9 calls for.
func (e *Engine) Summarize() Summary {
	s := Summary{CountsByKind: make(map[model.StopKind]int)}
	for _, c := range e.conditions {
		s.Total++
		s.CountsByKind[c.Kind]++
		switch c.Severity {
		case model.SeverityHigh:
			s.HighSeverity++
		case model.SeverityMed:
			s.MedSeverity++
		default:
			s.LowSeverity++
		}
	}
	return s
}

func titleFor(k model.StopKind) string {
	switch k {
	case model.StopTokenBudgetExceeded:
		return "Token budget exceeded"
	case model.StopResultLimitReached:
		return "Result limit reached"
	case model.StopQualityThreshold:
		return "Quality threshold not met"
	case model.StopSearchFailure:
		return "Search producer failed"
	case model.StopCacheBoundary:
		return "Cache boundary crossed"
	case model.StopGraphDepthLimit:
		return "Graph depth limit reached"
	case model.StopGraphTokenLimit:
		return "Graph expansion token limit reached"
	case model.StopTimeout:
		return "Phase timed out"
	case model.StopDegradationTriggered:
		return "Content degraded to fit budget"
	case model.StopCompletedNormally:
		return "Completed normally"
	default:
		return string(k)
	}
}

func explanationFor(k model.StopKind, f model.StopFacts) string {
	switch k {
	case model.StopTokenBudgetExceeded:
		return fmt.Sprintf("used %d of %d token budget; remaining candidates were dropped", f.Used, f.Budget)
	case model.StopResultLimitReached:
		return fmt.Sprintf("reached the configured result limit of %d", f.Limit)
	case model.StopQualityThreshold:
		return fmt.Sprintf("remaining candidates scored below threshold %.2f", f.Threshold)
	case model.StopSearchFailure:
		return "one or more producers failed; their weight was set to 0 for this request"
	case model.StopCacheBoundary:
		return "a cache entry for this key expired or was invalidated by an indexVersion change"
	case model.StopGraphDepthLimit:
		return fmt.Sprintf("graph expansion reached the configured max depth (%d)", f.Limit)
	case model.StopGraphTokenLimit:
		return fmt.Sprintf("graph expansion used %d of its %d token allowance", f.Used, f.Budget)
	case model.StopTimeout:
		return "the phase deadline was exceeded before completing"
	case model.StopDegradationTriggered:
		return fmt.Sprintf("%d item(s) were degraded to capsule form to fit the budget", f.Seen)
	case model.StopCompletedNormally:
		return "assembly completed without hitting any limit"
	default:
		return ""
	}
}

func recommendationFor(k model.StopKind) string {
	switch k {
	case model.StopTokenBudgetExceeded, model.StopGraphTokenLimit:
		return "increase the budget or narrow the query to fit more content"
	case model.StopResultLimitReached:
		return "raise the result limit if more breadth is needed"
	case model.StopQualityThreshold:
		return "broaden the query or lower the quality threshold"
	case model.StopSearchFailure:
		return "check the failing producer's connectivity and retry"
	case model.StopCacheBoundary:
		return "no action needed; the next call will repopulate the cache"
	case model.StopGraphDepthLimit:
		return "increase maxDepth if deeper relationships are needed"
	case model.StopTimeout:
		return "retry, or raise the phase timeout for large repositories"
	case model.StopDegradationTriggered:
		return "increase the budget to receive full content instead of capsules"
	default:
		return ""
	}
}

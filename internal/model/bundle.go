package model

import "time"

// StopKind enumerates the non-overlapping termination-condition kinds
// the stopping-reason engine (C9) can record against a session.
type StopKind string

const (
	StopTokenBudgetExceeded StopKind = "token-budget-exceeded"
	StopResultLimitReached  StopKind = "result-limit-reached"
	StopQualityThreshold    StopKind = "quality-threshold"
	StopSearchFailure       StopKind = "search-failure"
	StopCacheBoundary       StopKind = "cache-boundary"
	StopGraphDepthLimit     StopKind = "graph-depth-limit"
	StopGraphTokenLimit     StopKind = "graph-token-limit"
	StopTimeout             StopKind = "timeout"
	StopDegradationTriggered StopKind = "degradation-triggered"
	StopCompletedNormally   StopKind = "completed-normally"
)

// StopSeverity classifies a StopKind's impact on bundle quality. The
// stopping-reason engine's shouldStop() is true iff any recorded
// condition carries SeverityHigh.
type StopSeverity string

const (
	SeverityLow  StopSeverity = "low"
	SeverityMed  StopSeverity = "med"
	SeverityHigh StopSeverity = "high"
)

// StopFacts carries the numeric context behind a stop condition, used
// to render its explanation and recommendation.
type StopFacts struct {
	Budget    int
	Used      int
	Limit     int
	Seen      int
	Threshold float64
}

// StopCondition records one stopping decision made during assembly.
// Conditions are append-only for the life of a session; the session
// summary aggregates them by kind and severity.
type StopCondition struct {
	Kind           StopKind
	Severity       StopSeverity
	Facts          StopFacts
	Phase          SessionPhase
	Title          string
	Explanation    string
	Recommendation string
}

// BundleItem is one span included in the final bundle, paired with the
// evidence that explains why it's there.
type BundleItem struct {
	Span     Span
	Evidence Evidence
}

// TokenReport summarizes the token accounting for an assembled bundle.
type TokenReport struct {
	Budget   int
	Used     int
	Model    string
	Degraded int
	Dropped  int
}

// CacheStats reports cache-layer hit/miss counters for one assembly
// request, surfaced in the Bundle for the determinism/warm-cache
// testable property.
type CacheStats struct {
	Hits   int
	Misses int
}

// Bundle is the final, immutable artifact returned to a caller: the
// packed spans with their evidence, the stopping reasons that shaped
// the pack, and a token accounting summary. Ordering of Items is
// deterministic for a given input and cache state.
type Bundle struct {
	SessionID       string
	Intent          string
	Policy          string
	Items           []BundleItem
	DroppedEvidence []Evidence
	StoppingReasons []StopCondition
	Tokens          TokenReport
	CacheStats      CacheStats
	Partial         bool
	AssembledAt     time.Time
}

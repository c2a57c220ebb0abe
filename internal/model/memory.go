package model

import "time"

// MemoryItem is a durable note bound to a session or repo. Scope
// governs retention: pinned items survive indefinitely, auto items are
// written by the assembler itself (e.g. recorded interaction outcomes),
// ephemeral items expire with the session.
type MemoryItem struct {
	ID         string
	SessionID  string
	Repo       string
	Scope      MemoryScope
	Text       string
	Tags       []string
	CreatedAt  time.Time
	LastUsedAt time.Time
	Embedding  []float32
}

// MemoryScope controls the retention of a MemoryItem.
type MemoryScope string

const (
	ScopePinned   MemoryScope = "pinned"
	ScopeAuto     MemoryScope = "auto"
	ScopeEphemeral MemoryScope = "ephemeral"
)

// InteractionSignal is an outcome record used by the seed mix optimizer
// to bias future weights for a given intent: whether a past bundle
// satisfied the query, how long it took the caller to resolve, and the
// weights/thresholds that produced it.
type InteractionSignal struct {
	SessionID        string
	Query            string
	Intent           string
	BundleSignature  string
	Satisfied        bool
	TimeToFixMs       int64
	TokenUsage        int
	SeedWeights       map[SearchSource]float64
	PolicyThresholds  map[string]float64
}

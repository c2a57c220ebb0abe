package model

// SearchSource identifies which retrieval producer contributed a
// SearchResult, used as the provenance key in RRF fusion and evidence.
// Values follow spec.md's glossary: lex (lexical FTS), vec (vector
// kNN), sym (symbol store lookup), mem (memory items), graph (graph
// traversal expansion).
type SearchSource string

const (
	SourceLex   SearchSource = "lex"
	SourceVec   SearchSource = "vec"
	SourceSym   SearchSource = "sym"
	SourceMem   SearchSource = "mem"
	SourceGraph SearchSource = "graph"
)

// SearchResult is one producer's scored hit against a query, prior to
// fusion. Score is producer-local and not comparable across sources;
// Rank is the producer's own 1-based ordering, which is what RRF
// actually fuses on.
type SearchResult struct {
	SpanID string
	Source SearchSource
	Score  float64
	Rank   int
}

// FusedResult is the output of C5's reciprocal rank fusion: one span,
// one fused score, with the contributing per-source ranks retained for
// evidence and deterministic tie-breaking.
type FusedResult struct {
	SpanID     string
	FusedScore float64
	PerSource  map[SearchSource]int
}

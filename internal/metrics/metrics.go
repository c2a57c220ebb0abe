// Package metrics computes graph centrality signals over the edge
// graph — PageRank-style keystone scores and betweenness bottleneck
// scores. The assembler uses the keystone scores (with in-degree) to
// pick the spans rank.ApplyKeystoneBoost promotes during Fuse; the
// betweenness and graph-shape helpers have no caller outside this
// package's tests.
package metrics

import (
	"sort"
	"time"

	"github.com/anthropics/pampax/internal/model"
)

// Adjacency is a directed graph keyed by span ID, each entry listing the
// span IDs it points to. Built once per repository snapshot from the
// edge table and reused across PageRank, betweenness, and degree queries.
type Adjacency map[string][]string

// BuildAdjacency folds a flat edge list into an Adjacency map, including
// every endpoint as a key even if it has no outgoing edges so degree and
// root computations see the full node set.
func BuildAdjacency(edges []model.Edge) Adjacency {
	adj := make(Adjacency)
	for _, e := range edges {
		if _, ok := adj[e.From]; !ok {
			adj[e.From] = nil
		}
		if _, ok := adj[e.To]; !ok {
			adj[e.To] = nil
		}
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// NodeScore pairs a span ID with a computed centrality score, the shape
// returned by every top-N ranking helper in this package.
type NodeScore struct {
	SpanID string
	Score  float64
}

// topN sorts scores descending and returns the first n, shared by
// TopKeystones and TopBottlenecks.
func topN(scores map[string]float64, n int) []NodeScore {
	if n <= 0 {
		return nil
	}
	ranked := make([]NodeScore, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, NodeScore{SpanID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SpanID < ranked[j].SpanID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// SpanMetrics holds computed centrality scores for a span.
type SpanMetrics struct {
	SpanID      string
	PageRank    float64
	InDegree    int
	OutDegree   int
	Betweenness float64
	ComputedAt  time.Time
}

// Importance classifies a span's structural weight in the graph.
type Importance string

const (
	Critical Importance = "critical"
	High     Importance = "high"
	Medium   Importance = "medium"
	Low      Importance = "low"
)

// Thresholds holds the cutoffs used to classify spans and flag
// keystones/bottlenecks.
type Thresholds struct {
	Critical    float64
	High        float64
	Medium      float64
	KeystonePR  float64
	KeystoneDeps int
	Bottleneck  float64
}

// DefaultThresholds returns the cutoffs the assembler's keystone boost
// uses: moderately selective, so boosting only kicks in for genuinely
// central spans.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical:     0.50,
		High:         0.30,
		Medium:       0.10,
		KeystonePR:   0.30,
		KeystoneDeps: 5,
		Bottleneck:   0.20,
	}
}

// Classify buckets a PageRank score into an Importance level.
func Classify(pageRank float64, t Thresholds) Importance {
	switch {
	case pageRank >= t.Critical:
		return Critical
	case pageRank >= t.High:
		return High
	case pageRank >= t.Medium:
		return Medium
	default:
		return Low
	}
}

// IsKeystone reports whether a span is a structural keystone: high
// PageRank and enough incoming edges that many other spans depend on
// it, making it a strong seed-mix boost candidate.
func IsKeystone(pageRank float64, inDegree int, t Thresholds) bool {
	return pageRank >= t.KeystonePR && inDegree >= t.KeystoneDeps
}

// IsBottleneck reports whether a span's betweenness centrality marks it
// as a bridge that many graph-traversal paths pass through.
func IsBottleneck(betweenness float64, t Thresholds) bool {
	return betweenness >= t.Bottleneck
}

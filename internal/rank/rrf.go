// Package rank implements the hybrid ranker (C5): deterministic
// reciprocal rank fusion of ranked lists from N producers.
//
// Grounded on the teacher's internal/context/smart.go hybridScore /
// applyHybridScoring (weighted combination of per-source scores into
// one fused score, then a stable sort), generalized to spec.md §4.5's
// RRF formula and tie-break rule.
package rank

import (
	"sort"

	"github.com/anthropics/pampax/internal/model"
)

// DefaultK is the RRF rank-damping constant (spec.md §4.5).
const DefaultK = 60

// Fuse combines per-producer SearchResult lists into a single fused,
// ranked list. weights maps each SearchSource to its contribution;
// sources absent from weights (or with weight 0, e.g. a failed
// producer) contribute nothing. Fuse first sorts the producer inputs
// by source name so that permuting the caller's input order never
// changes the output (spec.md §8, testable property 4).
//
// Fuse is a pure function: identical inputs (including k) always
// produce a bit-identical output sequence.
func Fuse(results []model.SearchResult, weights map[model.SearchSource]float64, k int, limit int) []model.FusedResult {
	if k <= 0 {
		k = DefaultK
	}

	bySource := groupBySource(results)
	sourceOrder := sortedSources(bySource)

	scores := make(map[string]float64)
	perSource := make(map[string]map[model.SearchSource]int)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for _, src := range sourceOrder {
		w := weights[src]
		if w == 0 {
			continue
		}
		for _, r := range bySource[src] {
			if !seen[r.SpanID] {
				seen[r.SpanID] = true
				order = append(order, r.SpanID)
				perSource[r.SpanID] = make(map[model.SearchSource]int)
			}
			scores[r.SpanID] += w / float64(k+r.Rank)
			perSource[r.SpanID][src] = r.Rank
		}
	}

	fused := make([]model.FusedResult, 0, len(order))
	for _, id := range order {
		fused = append(fused, model.FusedResult{
			SpanID:     id,
			FusedScore: scores[id],
			PerSource:  perSource[id],
		})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		// Tie-break (a): more producers agreeing wins.
		if len(fused[i].PerSource) != len(fused[j].PerSource) {
			return len(fused[i].PerSource) > len(fused[j].PerSource)
		}
		// Tie-break (b): lexicographic id.
		return fused[i].SpanID < fused[j].SpanID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// KeystoneBoost is the multiplier applied to a fused score when its
// span is a structural keystone (internal/metrics.IsKeystone): a small
// nudge, not a reordering override, so RRF fusion still dominates the
// final ranking.
const KeystoneBoost = 1.15

// ApplyKeystoneBoost re-scores fused results whose span id appears in
// keystones, then re-sorts with the same tie-break rule Fuse uses. It
// is a separate pass rather than a Fuse parameter so graph centrality
// never has to be known by the time producer results are fused.
func ApplyKeystoneBoost(fused []model.FusedResult, keystones map[string]bool) []model.FusedResult {
	if len(keystones) == 0 {
		return fused
	}
	out := make([]model.FusedResult, len(fused))
	copy(out, fused)
	for i, r := range out {
		if keystones[r.SpanID] {
			out[i].FusedScore *= KeystoneBoost
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if len(out[i].PerSource) != len(out[j].PerSource) {
			return len(out[i].PerSource) > len(out[j].PerSource)
		}
		return out[i].SpanID < out[j].SpanID
	})
	return out
}

func groupBySource(results []model.SearchResult) map[model.SearchSource][]model.SearchResult {
	grouped := make(map[model.SearchSource][]model.SearchResult)
	for _, r := range results {
		grouped[r.Source] = append(grouped[r.Source], r)
	}
	return grouped
}

func sortedSources(grouped map[model.SearchSource][]model.SearchResult) []model.SearchSource {
	sources := make([]model.SearchSource, 0, len(grouped))
	for src := range grouped {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

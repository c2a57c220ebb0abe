package rank

import (
	"math/rand"
	"testing"

	"github.com/anthropics/pampax/internal/model"
)

func sampleResults() []model.SearchResult {
	return []model.SearchResult{
		{SpanID: "a", Source: model.SourceLex, Rank: 1},
		{SpanID: "b", Source: model.SourceLex, Rank: 2},
		{SpanID: "a", Source: model.SourceVec, Rank: 3},
		{SpanID: "c", Source: model.SourceVec, Rank: 1},
		{SpanID: "b", Source: model.SourceSym, Rank: 1},
	}
}

func sampleWeights() map[model.SearchSource]float64 {
	return map[model.SearchSource]float64{
		model.SourceLex: 0.4,
		model.SourceVec: 0.3,
		model.SourceSym: 0.3,
	}
}

func TestFuseIsPermutationInvariant(t *testing.T) {
	base := sampleResults()
	weights := sampleWeights()

	want := Fuse(base, weights, DefaultK, 0)

	for trial := 0; trial < 5; trial++ {
		shuffled := append([]model.SearchResult(nil), base...)
		rand.New(rand.NewSource(int64(trial))).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := Fuse(shuffled, weights, DefaultK, 0)
		if len(got) != len(want) {
			t.Fatalf("trial %d: len = %d, want %d", trial, len(got), len(want))
		}
		for i := range got {
			if got[i].SpanID != want[i].SpanID {
				t.Fatalf("trial %d: position %d = %q, want %q", trial, i, got[i].SpanID, want[i].SpanID)
			}
		}
	}
}

func TestFuseZeroWeightExcludesSource(t *testing.T) {
	results := sampleResults()
	weights := map[model.SearchSource]float64{
		model.SourceLex: 0.5,
		model.SourceVec: 0,
		model.SourceSym: 0.5,
	}
	fused := Fuse(results, weights, DefaultK, 0)
	for _, f := range fused {
		if f.SpanID == "c" {
			t.Fatalf("span only present in zero-weight source should not appear: %+v", f)
		}
	}
}

func TestFuseTieBreaksByRankStabilityThenID(t *testing.T) {
	results := []model.SearchResult{
		{SpanID: "z", Source: model.SourceSym, Rank: 1},
		{SpanID: "y", Source: model.SourceLex, Rank: 1},
		{SpanID: "y", Source: model.SourceVec, Rank: 1},
	}
	// z's one sym hit (2/61) ties y's two hits (1/61 + 1/61), so the
	// order comes from the tie-break rule, not the fused score.
	weights := map[model.SearchSource]float64{model.SourceLex: 1, model.SourceVec: 1, model.SourceSym: 2}
	fused := Fuse(results, weights, DefaultK, 0)
	if fused[0].SpanID != "y" {
		t.Fatalf("expected %q (2 producers) to rank above %q (1 producer), got order %+v", "y", "z", fused)
	}
}

func TestFuseRespectsLimit(t *testing.T) {
	fused := Fuse(sampleResults(), sampleWeights(), DefaultK, 1)
	if len(fused) != 1 {
		t.Fatalf("len(fused) = %d, want 1", len(fused))
	}
}

func TestApplyKeystoneBoostPromotesMarkedSpan(t *testing.T) {
	// Two near-tied spans; boosting the trailing one should be enough to
	// flip the order without needing a reordering pass beyond re-sort.
	fused := []model.FusedResult{
		{SpanID: "top", FusedScore: 1.0},
		{SpanID: "near", FusedScore: 0.9},
	}

	boosted := ApplyKeystoneBoost(fused, map[string]bool{"near": true})

	if boosted[0].SpanID != "near" {
		t.Fatalf("expected boosted span to move to front, order = %+v", boosted)
	}
	if !(boosted[0].FusedScore > fused[1].FusedScore) {
		t.Fatalf("expected boosted score > original, got %f vs %f", boosted[0].FusedScore, fused[1].FusedScore)
	}
}

func TestApplyKeystoneBoostNoOpWhenEmpty(t *testing.T) {
	fused := Fuse(sampleResults(), sampleWeights(), DefaultK, 0)
	boosted := ApplyKeystoneBoost(fused, nil)
	for i := range fused {
		if fused[i].SpanID != boosted[i].SpanID || fused[i].FusedScore != boosted[i].FusedScore {
			t.Fatalf("expected no-op when no keystones given, got %+v vs %+v", fused[i], boosted[i])
		}
	}
}

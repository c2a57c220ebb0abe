package assembler

import (
	"context"

	"github.com/anthropics/pampax/internal/graphtraverse"
	"github.com/anthropics/pampax/internal/model"
	"github.com/anthropics/pampax/internal/policy"
	"github.com/anthropics/pampax/internal/stopreason"
	"github.com/anthropics/pampax/internal/store"
	"github.com/anthropics/pampax/internal/tokencount"
)

// expansionShare is the fraction of the total token budget reserved
// for graph expansion by default, per spec.md §4.10 step 5.
const expansionShare = 0.20

// expand runs C6 from the top fused items as seeds, returning the
// newly visited spans as pack-ready tokencount.Items. It never mutates
// the seed items themselves; seeds remain present once in the final
// item set via the caller's own fused-items slice.
func (a *Assembler) expand(ctx context.Context, req Request, pol policy.Policy, fusedItems []tokencount.Item, engine *stopreason.Engine) []tokencount.Item {
	if !pol.IncludeSymbols && !pol.IncludeFiles {
		return nil
	}

	seedCount := pol.EarlyStopThreshold
	if seedCount <= 0 || seedCount > len(fusedItems) {
		seedCount = len(fusedItems)
	}

	seeds := make([]graphtraverse.Seed, 0, seedCount)
	for _, it := range fusedItems[:seedCount] {
		seeds = append(seeds, graphtraverse.Seed{SpanID: it.Span.ID, Score: it.Score})
	}
	if len(seeds) == 0 {
		return nil
	}

	direction := directionFor(req)
	maxDepth := pol.MaxDepth
	if req.GraphDepth > 0 {
		maxDepth = req.GraphDepth
	}

	budget := int(float64(req.Budget) * expansionShare)
	if budget <= 0 {
		budget = 1
	}

	input := graphtraverse.Input{
		Seeds:            seeds,
		AllowedEdgeKinds: allEdgeKinds,
		MaxDepth:         maxDepth,
		TokenBudget:      budget,
		Direction:        direction,
		Model:            req.Model,
	}

	result := graphtraverse.Traverse(ctx, store.AsEdgeSource(a.deps.Store), store.AsSpanSource(a.deps.Store), input)

	if result.GraphUnavailable {
		// spec.md §4.6's graph.unavailable failure mode has no matching
		// StopKind in §4.9's enumerated set; search-failure is the
		// closest existing kind and is recorded against the expand
		// phase instead of minting a new kind outside the spec.
		engine.Record(model.StopSearchFailure, model.SeverityMed, model.PhaseExpand, model.StopFacts{})
		return nil
	}

	switch result.StopKind {
	case model.StopTokenBudgetExceeded:
		engine.Record(model.StopGraphTokenLimit, model.SeverityMed, model.PhaseExpand, model.StopFacts{Budget: budget, Used: result.TokensUsed})
	case model.StopTimeout:
		engine.Record(model.StopTimeout, model.SeverityMed, model.PhaseExpand, model.StopFacts{})
	}

	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s.SpanID] = true
	}

	var out []tokencount.Item
	for _, v := range result.Visited {
		if seedSet[v.SpanID] {
			continue
		}
		span, ok, err := a.deps.Store.GetSpan(ctx, v.SpanID)
		if err != nil || !ok {
			continue
		}
		ev := model.Evidence{
			ItemID:      v.SpanID,
			Source:      model.SourceGraph,
			EdgeKind:    v.ViaEdgeKind,
			HasEdgeKind: v.HasViaEdgeKind,
			ScoreBreakdown: model.ScoreBreakdown{
				FusedScore: v.Score,
			},
		}
		out = append(out, tokencount.Item{Span: span, Score: v.Score, Evidence: ev})
	}

	if maxDepthReached(result, maxDepth) {
		engine.Record(model.StopGraphDepthLimit, model.SeverityLow, model.PhaseExpand, model.StopFacts{Limit: maxDepth})
	}

	return out
}

var allEdgeKinds = []model.EdgeKind{
	model.EdgeCall, model.EdgeImport, model.EdgeTestOf, model.EdgeRoutes, model.EdgeConfigKey,
}

func directionFor(req Request) graphtraverse.Direction {
	switch {
	case req.Callers > 0 && req.Callees > 0:
		return graphtraverse.Both
	case req.Callers > 0:
		return graphtraverse.Callers
	case req.Callees > 0:
		return graphtraverse.Callees
	default:
		return graphtraverse.Both
	}
}

func maxDepthReached(result graphtraverse.Result, maxDepth int) bool {
	for _, v := range result.Visited {
		if v.Depth >= maxDepth {
			return true
		}
	}
	return false
}

// Package graphtraverse implements the graph traverser (C6): a
// best-first bounded BFS over the code graph from a set of seed spans,
// guarded by depth and a running token budget.
//
// Grounded on the teacher's internal/context/smart.go traceFlow (a BFS
// queue seeded from entry points' successors/predecessors, a running
// token budget, per-node relevance boosting, test/mock exclusion),
// generalized into spec.md §4.6's explicit priority-ordered frontier
// and edge-kind weighting.
package graphtraverse

import (
	"context"
	"sort"

	"github.com/anthropics/pampax/internal/model"
	"github.com/anthropics/pampax/internal/tokencount"
)

// Direction controls which edges the traverser follows from a node.
type Direction string

const (
	Callers Direction = "callers"
	Callees Direction = "callees"
	Both    Direction = "both"
)

// edgeKindPriority fixes the tie-break order "as listed" in spec.md
// §4.6's edge weight bullet: call, import, test-of, routes, config-key.
var edgeKindPriority = map[model.EdgeKind]int{
	model.EdgeCall:      0,
	model.EdgeImport:    1,
	model.EdgeTestOf:    2,
	model.EdgeRoutes:    3,
	model.EdgeConfigKey: 4,
}

// EdgeSource is the subset of the Store contract the traverser needs:
// outgoing/incoming edges for a span, filtered to allowed kinds.
type EdgeSource interface {
	GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, direction Direction) ([]model.Edge, error)
}

// SpanSource resolves a span id to its full Span, used both for
// token-counting and for exclusion checks (test/mock spans).
type SpanSource interface {
	GetSpan(ctx context.Context, id string) (model.Span, bool, error)
}

// Seed is one BFS root: a span id plus the score it entered the
// traversal with (its fused rank score from C5), which anchors the
// priority of everything reachable from it.
type Seed struct {
	SpanID string
	Score  float64
}

// Visited is one node the traversal accepted into the result.
type Visited struct {
	SpanID         string
	Depth          int
	ViaEdgeKind    model.EdgeKind
	HasViaEdgeKind bool
	ParentID       string
	Score          float64
	Tokens         int
}

// Input bundles the traversal's parameters (spec.md §4.6's contract).
type Input struct {
	Seeds            []Seed
	AllowedEdgeKinds []model.EdgeKind
	MaxDepth         int
	TokenBudget      int
	Direction        Direction
	Model            string
}

// Result is the traversal's output: the visited set plus whatever
// stopping condition halted it.
type Result struct {
	Visited     []Visited
	TokensUsed  int
	StopKind    model.StopKind
	GraphUnavailable bool
}

type frontierItem struct {
	spanID      string
	depth       int
	viaEdgeKind model.EdgeKind
	parentID    string
	priority    float64
	seedScore   float64
}

// Traverse runs the best-first bounded BFS described in spec.md §4.6.
// If a seed's edge lookup fails and no seed yields an edge to follow
// (EdgeSource errors and the frontier stays empty), Traverse returns the
// seeds unchanged with
// GraphUnavailable=true and StopKind="" — the caller (assembler) is
// responsible for recording the graph.unavailable condition, since
// stop-condition phrasing/severity is owned by C9, not C6.
func Traverse(ctx context.Context, edges EdgeSource, spans SpanSource, in Input) Result {
	in.MaxDepth = clampDepth(in.MaxDepth)

	visitedSet := make(map[string]bool, len(in.Seeds))
	var visited []Visited
	tokensUsed := 0

	for _, s := range in.Seeds {
		if visitedSet[s.SpanID] {
			continue
		}
		tokens := spanTokens(ctx, spans, s.SpanID, in.Model)
		visitedSet[s.SpanID] = true
		tokensUsed += tokens
		visited = append(visited, Visited{SpanID: s.SpanID, Depth: 0, Score: s.Score, Tokens: tokens})
	}

	var frontier []frontierItem
	unavailable := false
	for _, s := range in.Seeds {
		next, err := edges.GetEdges(ctx, s.SpanID, in.AllowedEdgeKinds, in.Direction)
		if err != nil {
			unavailable = true
			continue
		}
		for _, e := range next {
			to := e.To
			if s.SpanID != e.From {
				to = e.From // incoming edge when walking callers
			}
			if visitedSet[to] {
				continue
			}
			frontier = append(frontier, frontierItem{
				spanID:      to,
				depth:       1,
				viaEdgeKind: e.Kind,
				parentID:    s.SpanID,
				priority:    priorityOf(1, e, s.Score),
				seedScore:   s.Score,
			})
		}
	}

	if unavailable && len(frontier) == 0 && len(visited) == len(in.Seeds) {
		return Result{Visited: visited, TokensUsed: tokensUsed, GraphUnavailable: true}
	}

	// Zero value: frontier ran dry with nothing left to visit, not a
	// stop condition worth recording against budget or depth.
	var stopKind model.StopKind

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			stopKind = model.StopTimeout
			frontier = nil
			continue
		default:
		}

		sortFrontier(frontier)
		head := frontier[0]
		frontier = frontier[1:]

		if visitedSet[head.spanID] {
			continue
		}
		if head.depth > in.MaxDepth {
			continue
		}

		tokens := spanTokens(ctx, spans, head.spanID, in.Model)
		if tokensUsed+tokens > in.TokenBudget {
			stopKind = model.StopTokenBudgetExceeded
			break
		}

		visitedSet[head.spanID] = true
		tokensUsed += tokens
		visited = append(visited, Visited{
			SpanID: head.spanID, Depth: head.depth, ViaEdgeKind: head.viaEdgeKind,
			HasViaEdgeKind: true, ParentID: head.parentID, Score: head.priority, Tokens: tokens,
		})

		if head.depth >= in.MaxDepth {
			continue
		}

		next, err := edges.GetEdges(ctx, head.spanID, in.AllowedEdgeKinds, in.Direction)
		if err != nil {
			continue
		}
		for _, e := range next {
			to := e.To
			if head.spanID != e.From {
				to = e.From
			}
			if visitedSet[to] {
				continue
			}
			frontier = append(frontier, frontierItem{
				spanID:      to,
				depth:       head.depth + 1,
				viaEdgeKind: e.Kind,
				parentID:    head.spanID,
				priority:    priorityOf(head.depth+1, e, head.seedScore),
				seedScore:   head.seedScore,
			})
		}
	}

	return Result{Visited: visited, TokensUsed: tokensUsed, StopKind: stopKind}
}

// priorityOf computes the frontier priority score from spec.md §4.6:
// (1/(depth+1)) * edgeWeight * seedScore.
func priorityOf(depth int, e model.Edge, seedScore float64) float64 {
	return (1.0 / float64(depth+1)) * e.EffectiveWeight() * seedScore
}

// sortFrontier orders the frontier deterministically: priority
// descending, then edge kind priority as listed in spec.md §4.6, then
// span id.
func sortFrontier(frontier []frontierItem) {
	sort.SliceStable(frontier, func(i, j int) bool {
		a, b := frontier[i], frontier[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if edgeKindPriority[a.viaEdgeKind] != edgeKindPriority[b.viaEdgeKind] {
			return edgeKindPriority[a.viaEdgeKind] < edgeKindPriority[b.viaEdgeKind]
		}
		return a.spanID < b.spanID
	})
}

func spanTokens(ctx context.Context, spans SpanSource, id string, modelName string) int {
	span, ok, err := spans.GetSpan(ctx, id)
	if err != nil || !ok {
		return 0
	}
	return tokencount.Count(span.Content, modelName)
}

func clampDepth(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}

package graphtraverse

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/pampax/internal/model"
)

type fakeEdges struct {
	out map[string][]model.Edge
	err error
}

func (f *fakeEdges) GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, dir Direction) ([]model.Edge, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out[from], nil
}

type fakeSpans struct {
	byID map[string]model.Span
}

func (f *fakeSpans) GetSpan(ctx context.Context, id string) (model.Span, bool, error) {
	s, ok := f.byID[id]
	return s, ok, nil
}

func span(id, content string) model.Span {
	return model.Span{ID: id, Content: content}
}

func TestTraverseRespectsMaxDepth(t *testing.T) {
	edges := &fakeEdges{out: map[string][]model.Edge{
		"a": {{From: "a", To: "b", Kind: model.EdgeCall}},
		"b": {{From: "b", To: "c", Kind: model.EdgeCall}},
		"c": {{From: "c", To: "d", Kind: model.EdgeCall}},
	}}
	spans := &fakeSpans{byID: map[string]model.Span{
		"a": span("a", "x"), "b": span("b", "x"), "c": span("c", "x"), "d": span("d", "x"),
	}}

	res := Traverse(context.Background(), edges, spans, Input{
		Seeds:            []Seed{{SpanID: "a", Score: 1}},
		AllowedEdgeKinds: []model.EdgeKind{model.EdgeCall},
		MaxDepth:         2,
		TokenBudget:      10000,
		Direction:        Callees,
		Model:            "default",
	})

	for _, v := range res.Visited {
		if v.Depth > 2 {
			t.Fatalf("visited %s at depth %d, want <= 2", v.SpanID, v.Depth)
		}
	}
	ids := make(map[string]bool)
	for _, v := range res.Visited {
		ids[v.SpanID] = true
	}
	if ids["d"] {
		t.Fatalf("node d is at depth 3, should not have been visited with MaxDepth=2")
	}
}

func TestTraverseHaltsAtTokenBudget(t *testing.T) {
	big := make([]byte, 400)
	for i := range big {
		big[i] = 'x'
	}
	edges := &fakeEdges{out: map[string][]model.Edge{
		"a": {{From: "a", To: "b", Kind: model.EdgeCall}, {From: "a", To: "c", Kind: model.EdgeCall}},
	}}
	spans := &fakeSpans{byID: map[string]model.Span{
		"a": span("a", string(big)), "b": span("b", string(big)), "c": span("c", string(big)),
	}}

	res := Traverse(context.Background(), edges, spans, Input{
		Seeds:            []Seed{{SpanID: "a", Score: 1}},
		AllowedEdgeKinds: []model.EdgeKind{model.EdgeCall},
		MaxDepth:         3,
		TokenBudget:      150,
		Direction:        Callees,
		Model:            "default",
	})

	if res.TokensUsed > 150 {
		t.Fatalf("TokensUsed = %d, want <= 150", res.TokensUsed)
	}
	if res.StopKind != model.StopTokenBudgetExceeded {
		t.Fatalf("StopKind = %v, want %v", res.StopKind, model.StopTokenBudgetExceeded)
	}
}

func TestTraverseGraphUnavailable(t *testing.T) {
	edges := &fakeEdges{err: errors.New("edge index down")}
	spans := &fakeSpans{byID: map[string]model.Span{"a": span("a", "x")}}

	res := Traverse(context.Background(), edges, spans, Input{
		Seeds:            []Seed{{SpanID: "a", Score: 1}},
		AllowedEdgeKinds: []model.EdgeKind{model.EdgeCall},
		MaxDepth:         3,
		TokenBudget:      1000,
		Direction:        Callees,
		Model:            "default",
	})

	if !res.GraphUnavailable {
		t.Fatalf("GraphUnavailable = false, want true")
	}
	if len(res.Visited) != 1 || res.Visited[0].SpanID != "a" {
		t.Fatalf("expected seeds unchanged, got %+v", res.Visited)
	}
}

func TestTraverseDeterministicVisitOrder(t *testing.T) {
	edges := &fakeEdges{out: map[string][]model.Edge{
		"a": {
			{From: "a", To: "import-target", Kind: model.EdgeImport},
			{From: "a", To: "call-target", Kind: model.EdgeCall},
		},
	}}
	spans := &fakeSpans{byID: map[string]model.Span{
		"a": span("a", "x"), "import-target": span("import-target", "x"), "call-target": span("call-target", "x"),
	}}

	run := func() []string {
		res := Traverse(context.Background(), edges, spans, Input{
			Seeds:            []Seed{{SpanID: "a", Score: 1}},
			AllowedEdgeKinds: []model.EdgeKind{model.EdgeCall, model.EdgeImport},
			MaxDepth:         2,
			TokenBudget:      10000,
			Direction:        Callees,
			Model:            "default",
		})
		var ids []string
		for _, v := range res.Visited {
			ids = append(ids, v.SpanID)
		}
		return ids
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("non-deterministic visited count: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic visit order: %v vs %v", first, second)
		}
	}
	// call (weight 1.0) must be visited before import (weight 0.7) since
	// both are at depth 1 with equal seed score.
	if first[1] != "call-target" {
		t.Fatalf("expected call-target before import-target, got %v", first)
	}
}

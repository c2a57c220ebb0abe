package metrics

import "testing"

func TestDegrees(t *testing.T) {
	adj := Adjacency{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {},
	}

	inDegree, outDegree := Degrees(adj)
	if outDegree["A"] != 2 {
		t.Errorf("expected A out-degree 2, got %d", outDegree["A"])
	}
	if inDegree["C"] != 2 {
		t.Errorf("expected C in-degree 2, got %d", inDegree["C"])
	}
	if inDegree["A"] != 0 {
		t.Errorf("expected A in-degree 0, got %d", inDegree["A"])
	}
}

func TestDegreesWithTargetOutsideNodeSet(t *testing.T) {
	// B is only ever a target, never a key in adj (e.g. BuildAdjacency was
	// not used to construct it). Degrees should still count its incoming edge.
	adj := Adjacency{
		"A": {"B"},
	}
	inDegree, outDegree := Degrees(adj)
	if outDegree["A"] != 1 {
		t.Errorf("expected A out-degree 1, got %d", outDegree["A"])
	}
	if inDegree["B"] != 1 {
		t.Errorf("expected B in-degree 1, got %d", inDegree["B"])
	}
}

func TestReverse(t *testing.T) {
	adj := Adjacency{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}

	reversed := Reverse(adj)
	if len(reversed["C"]) != 1 || reversed["C"][0] != "B" {
		t.Errorf("expected C -> [B], got %v", reversed["C"])
	}
	if len(reversed["B"]) != 1 || reversed["B"][0] != "A" {
		t.Errorf("expected B -> [A], got %v", reversed["B"])
	}
	if len(reversed["A"]) != 0 {
		t.Errorf("expected A to have no incoming edges reversed, got %v", reversed["A"])
	}
}

func TestRoots(t *testing.T) {
	adj := Adjacency{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}
	roots := Roots(adj)
	if len(roots) != 1 || roots[0] != "A" {
		t.Errorf("expected root [A], got %v", roots)
	}
}

func TestComputeStats(t *testing.T) {
	adj := Adjacency{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {},
	}

	stats := ComputeStats(adj)
	if stats.NodeCount != 3 {
		t.Errorf("expected 3 nodes, got %d", stats.NodeCount)
	}
	if stats.EdgeCount != 3 {
		t.Errorf("expected 3 edges, got %d", stats.EdgeCount)
	}
	if stats.RootCount != 1 {
		t.Errorf("expected 1 root, got %d", stats.RootCount)
	}
	if stats.LeafCount != 1 {
		t.Errorf("expected 1 leaf, got %d", stats.LeafCount)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(Adjacency{})
	if stats.NodeCount != 0 {
		t.Errorf("expected zero-value stats for empty graph, got %+v", stats)
	}
}

func TestSubgraph(t *testing.T) {
	adj := Adjacency{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {"D"},
		"D": {},
	}

	sub := Subgraph(adj, []string{"A", "B", "C"})
	if len(sub) != 3 {
		t.Fatalf("expected 3 nodes in subgraph, got %d", len(sub))
	}
	if len(sub["C"]) != 0 {
		t.Errorf("expected edge to D to be dropped since D is outside the subgraph, got %v", sub["C"])
	}
}

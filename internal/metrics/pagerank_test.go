package metrics

import "testing"

func TestComputeKeystoneScoresEmptyGraph(t *testing.T) {
	adj := Adjacency{}
	scores := ComputeKeystoneScores(adj, DefaultKeystoneConfig())
	if len(scores) != 0 {
		t.Errorf("expected empty scores for empty graph, got %v", scores)
	}
}

func TestComputeKeystoneScoresSingleNode(t *testing.T) {
	adj := Adjacency{"A": {}}
	scores := ComputeKeystoneScores(adj, DefaultKeystoneConfig())

	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	if !floatEquals(scores["A"], 1.0, 0.0001) {
		t.Errorf("expected score 1.0 for single node, got %f", scores["A"])
	}
}

func TestComputeKeystoneScoresLinearChain(t *testing.T) {
	adj := Adjacency{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}

	scores := ComputeKeystoneScores(adj, DefaultKeystoneConfig())
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}

	if scores["C"] <= scores["B"] {
		t.Errorf("expected C > B, got C=%f, B=%f", scores["C"], scores["B"])
	}
	if scores["B"] <= scores["A"] {
		t.Errorf("expected B > A, got B=%f, A=%f", scores["B"], scores["A"])
	}

	sum := scores["A"] + scores["B"] + scores["C"]
	if !floatEquals(sum, 1.0, 0.001) {
		t.Errorf("expected sum ~1.0, got %f", sum)
	}
}

func TestComputeKeystoneScoresCycle(t *testing.T) {
	adj := Adjacency{
		"A": {"B"},
		"B": {"C"},
		"C": {"A"},
	}

	scores := ComputeKeystoneScores(adj, DefaultKeystoneConfig())
	avg := 1.0 / 3.0
	for node, score := range scores {
		if !floatEquals(score, avg, 0.001) {
			t.Errorf("expected node %s to have score ~%f, got %f", node, avg, score)
		}
	}
}

func TestComputeKeystoneScoresStarGraph(t *testing.T) {
	adj := Adjacency{
		"A": {"D"},
		"B": {"D"},
		"C": {"D"},
		"D": {},
	}

	scores := ComputeKeystoneScores(adj, DefaultKeystoneConfig())
	if scores["D"] <= scores["A"] || scores["D"] <= scores["B"] || scores["D"] <= scores["C"] {
		t.Errorf("expected D to have highest score, got A=%f, B=%f, C=%f, D=%f",
			scores["A"], scores["B"], scores["C"], scores["D"])
	}
}

func TestComputeKeystoneScoresWithInfoConverges(t *testing.T) {
	adj := Adjacency{
		"A": {"B", "C"},
		"B": {"C", "D"},
		"C": {"D", "E"},
		"D": {"E", "A"},
		"E": {"A"},
	}

	cfg := DefaultKeystoneConfig()
	result := ComputeKeystoneScoresWithInfo(adj, cfg)
	if !result.Converged {
		t.Errorf("expected convergence within %d iterations, took %d with delta %f",
			cfg.MaxIterations, result.Iterations, result.FinalDelta)
	}
	if result.Iterations == 0 {
		t.Error("expected at least 1 iteration")
	}
}

func TestComputeKeystoneScoresDifferentDamping(t *testing.T) {
	adj := Adjacency{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}

	low := ComputeKeystoneScores(adj, KeystoneConfig{Damping: 0.50, MaxIterations: 100, Tolerance: 0.0001})
	high := ComputeKeystoneScores(adj, KeystoneConfig{Damping: 0.95, MaxIterations: 100, Tolerance: 0.0001})

	lowDiff := low["C"] - low["A"]
	highDiff := high["C"] - high["A"]
	if highDiff <= lowDiff {
		t.Errorf("expected higher damping to increase score spread, got low=%f, high=%f", lowDiff, highDiff)
	}
}

func TestDefaultKeystoneConfig(t *testing.T) {
	cfg := DefaultKeystoneConfig()
	if cfg.Damping != 0.85 {
		t.Errorf("expected default damping 0.85, got %f", cfg.Damping)
	}
	if cfg.MaxIterations != 100 {
		t.Errorf("expected default max iterations 100, got %d", cfg.MaxIterations)
	}
	if cfg.Tolerance != 0.0001 {
		t.Errorf("expected default tolerance 0.0001, got %f", cfg.Tolerance)
	}
}

func TestNormalizeScores(t *testing.T) {
	scores := map[string]float64{"A": 0.2, "B": 0.3, "C": 0.5}
	normalized := NormalizeScores(scores)

	sum := 0.0
	for _, s := range normalized {
		sum += s
	}
	if !floatEquals(sum, 1.0, 0.0001) {
		t.Errorf("expected normalized sum to be 1.0, got %f", sum)
	}
}

func TestNormalizeScoresEmpty(t *testing.T) {
	normalized := NormalizeScores(map[string]float64{})
	if len(normalized) != 0 {
		t.Errorf("expected empty map, got %v", normalized)
	}
}

func TestTopKeystones(t *testing.T) {
	scores := map[string]float64{"A": 0.1, "B": 0.4, "C": 0.2, "D": 0.3}
	top2 := TopKeystones(scores, 2)
	if len(top2) != 2 || top2[0].SpanID != "B" {
		t.Errorf("expected top span B first, got %v", top2)
	}
}

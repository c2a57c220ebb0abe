package metrics

import "math"

// KeystoneConfig holds PageRank algorithm parameters.
type KeystoneConfig struct {
	// Damping is the probability of following an edge rather than
	// teleporting; standard value is 0.85.
	Damping float64

	MaxIterations int

	// Tolerance is the convergence threshold: iteration stops once the
	// largest score change between iterations falls below it.
	Tolerance float64
}

// DefaultKeystoneConfig returns standard PageRank parameters.
func DefaultKeystoneConfig() KeystoneConfig {
	return KeystoneConfig{Damping: 0.85, MaxIterations: 100, Tolerance: 0.0001}
}

// KeystoneResult is the outcome of a keystone-score computation.
type KeystoneResult struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
	FinalDelta float64
}

// ComputeKeystoneScores runs PageRank over adj and returns the score
// map only, for callers (the assembler's keystone boost) that just want
// a per-span weight.
func ComputeKeystoneScores(adj Adjacency, cfg KeystoneConfig) map[string]float64 {
	return ComputeKeystoneScoresWithInfo(adj, cfg).Scores
}

// ComputeKeystoneScoresWithInfo runs PageRank over adj, returning
// convergence diagnostics alongside the scores.
func ComputeKeystoneScoresWithInfo(adj Adjacency, cfg KeystoneConfig) KeystoneResult {
	if len(adj) == 0 {
		return KeystoneResult{Converged: true}
	}

	n := len(adj)
	score := make(map[string]float64, n)
	for node := range adj {
		score[node] = 1.0 / float64(n)
	}

	incoming := buildIncoming(adj)

	result := KeystoneResult{Scores: score, FinalDelta: 1.0}
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		next := make(map[string]float64, n)
		maxDelta := 0.0

		danglingSum := 0.0
		for node := range adj {
			if len(adj[node]) == 0 {
				danglingSum += score[node]
			}
		}
		danglingShare := cfg.Damping * danglingSum / float64(n)

		for node := range adj {
			next[node] = (1.0-cfg.Damping)/float64(n) + danglingShare
			for _, in := range incoming[node] {
				next[node] += cfg.Damping * score[in.from] / float64(in.outDegree)
			}
			if d := math.Abs(next[node] - score[node]); d > maxDelta {
				maxDelta = d
			}
		}

		score = next
		result.Iterations = iter + 1
		result.FinalDelta = maxDelta
		if maxDelta < cfg.Tolerance {
			result.Converged = true
			break
		}
	}

	result.Scores = score
	return result
}

type inEdge struct {
	from      string
	outDegree int
}

func buildIncoming(adj Adjacency) map[string][]inEdge {
	incoming := make(map[string][]inEdge, len(adj))
	for node := range adj {
		incoming[node] = nil
	}
	for from, targets := range adj {
		outDegree := len(targets)
		if outDegree == 0 {
			continue
		}
		for _, to := range targets {
			incoming[to] = append(incoming[to], inEdge{from: from, outDegree: outDegree})
		}
	}
	return incoming
}

// NormalizeScores rescales scores so they sum to 1.0.
func NormalizeScores(scores map[string]float64) map[string]float64 {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	if sum == 0 {
		return scores
	}
	out := make(map[string]float64, len(scores))
	for node, s := range scores {
		out[node] = s / sum
	}
	return out
}

// TopKeystones returns the n highest-PageRank spans, descending.
func TopKeystones(scores map[string]float64, n int) []NodeScore {
	return topN(scores, n)
}

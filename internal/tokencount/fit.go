package tokencount

import (
	"sort"

	"github.com/anthropics/pampax/internal/model"
)

// Item is one candidate under consideration for a bundle: a span, the
// fused score that ranked it, and its evidence record (mutated in
// place to reflect degrade/drop decisions).
type Item struct {
	Span     model.Span
	Score    float64
	Evidence model.Evidence
}

// Report summarizes what fitToBudget did: which items were degraded to
// a capsule, which were dropped outright, and the final token usage.
type Report struct {
	Used     int
	Degraded []string
	Dropped  []string
}

// FitToBudget implements spec.md §4.1's fitToBudget(items, budget):
// compute full-content token costs, and if the sum exceeds budget,
// first degrade items to their capsule form (lowest score first) and
// recount, then drop items outright (again lowest score first) until
// the sum fits.
//
// Chosen policy for the open question in spec.md §9 (whether degrade
// must preserve order across invocations on the same item): degrade
// order is deterministic — ascending score, tie-broken by span id —
// and is re-derived from scratch on every call rather than carried
// across calls, since Items are a fresh candidate set per request.
func FitToBudget(items []Item, budget int, modelName string) ([]Item, Report) {
	working := make([]Item, len(items))
	copy(working, items)

	for i := range working {
		working[i].Evidence.Tokens = Count(working[i].Span.Content, modelName)
	}

	order := ascendingScoreOrder(working)

	total := sumTokens(working)
	var report Report

	for _, idx := range order {
		if total <= budget {
			break
		}
		it := &working[idx]
		if it.Evidence.Capsuled {
			continue
		}
		capsule := it.Span.Capsule()
		capsuleTokens := Count(capsule, modelName)
		if capsuleTokens < it.Evidence.Tokens {
			total -= it.Evidence.Tokens - capsuleTokens
			it.Span.Content = capsule
			it.Evidence.Tokens = capsuleTokens
			it.Evidence.Capsuled = true
			it.Evidence.Reason = model.DropDegraded
			report.Degraded = append(report.Degraded, it.Span.ID)
		}
	}

	kept := make([]Item, 0, len(working))
	keptSet := make(map[int]bool, len(working))
	for i := range working {
		keptSet[i] = true
	}

	for _, idx := range order {
		if total <= budget {
			break
		}
		if !keptSet[idx] {
			continue
		}
		it := working[idx]
		total -= it.Evidence.Tokens
		keptSet[idx] = false
		report.Dropped = append(report.Dropped, it.Span.ID)
	}

	for i, it := range working {
		if keptSet[i] {
			kept = append(kept, it)
		}
	}

	report.Used = sumTokens(kept)
	return kept, report
}

func ascendingScoreOrder(items []Item) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := items[order[a]], items[order[b]]
		if ia.Score != ib.Score {
			return ia.Score < ib.Score
		}
		return ia.Span.ID < ib.Span.ID
	})
	return order
}

func sumTokens(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Evidence.Tokens
	}
	return total
}

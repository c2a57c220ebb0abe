// Package evidence implements the evidence tracker (C8): a per-request
// sink that captures one provenance record per item, included or
// dropped, and is immutable once the session ends.
//
// Grounded on other_examples/57822454_mercator-hq-jupiter__pkg-evidence-
// types.go.go's EvidenceRecord/Storage shape (an append-only record
// store keyed by item id, queried by filters) scaled down to the
// single-request, in-memory sink spec.md §4.8 calls for — the core
// never persists evidence itself; only the caller may choose to write
// a returned Bundle out.
package evidence

import (
	"sort"
	"sync"

	"github.com/anthropics/pampax/internal/model"
)

// Sink collects Evidence records for one assembly request. Per spec.md
// §9 ("pass an EvidenceSink through each phase; phases emit, never
// read"), phases only ever call Record; nothing reads back through Sink
// until Close.
type Sink struct {
	mu     sync.Mutex
	byID   map[string]model.Evidence
	order  []string
	closed bool
}

// NewSink constructs an empty evidence sink for one request.
func NewSink() *Sink {
	return &Sink{byID: make(map[string]model.Evidence)}
}

// Record appends or overwrites ev under its ItemID. Recording the same
// id twice keeps only the latest record — later phases (e.g. Expand
// attaching an EdgeKind to a span Retrieve already surfaced) are
// expected to supersede earlier ones, not duplicate them.
func (s *Sink) Record(ev model.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, exists := s.byID[ev.ItemID]; !exists {
		s.order = append(s.order, ev.ItemID)
	}
	s.byID[ev.ItemID] = ev
}

// Close finalizes the sink; further Record calls are silently ignored,
// matching spec.md §4.8's "immutable after session end".
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// All returns every recorded evidence record, insertion-ordered by
// first Record call for that item id.
func (s *Sink) All() []model.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Evidence, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Included returns only the records for items that made it into the
// bundle (Reason == DropNone).
func (s *Sink) Included() []model.Evidence {
	var out []model.Evidence
	for _, ev := range s.All() {
		if ev.Reason == model.DropNone {
			out = append(out, ev)
		}
	}
	return out
}

// Dropped returns only the records for items excluded from the bundle.
func (s *Sink) Dropped() []model.Evidence {
	var out []model.Evidence
	for _, ev := range s.All() {
		if ev.Reason != model.DropNone {
			out = append(out, ev)
		}
	}
	return out
}

// SortedByPath returns All() sorted by (path-free) item id, used to
// produce the deterministic evidence-table order the markdown renderer
// (C11) requires. Sorting is by id since Sink itself doesn't resolve
// spans to paths; callers rendering a path-sorted table should sort
// their Bundle.Items directly and look up each item's evidence by id.
func (s *Sink) SortedByPath() []model.Evidence {
	all := s.All()
	sort.Slice(all, func(i, j int) bool { return all[i].ItemID < all[j].ItemID })
	return all
}

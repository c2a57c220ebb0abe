// Package store implements the Store contract (spec.md §6) and its
// concrete Dolt-backed implementation: the read surface the core
// consumes for lexical/vector/symbol/graph/memory lookups, plus the
// memory write path used by CLI tooling outside the core request path.
//
// Grounded on the teacher's internal/store package: db.go's Dolt DSN
// and Open/Close/Path shape, fts.go's MySQL FULLTEXT search, deps.go's
// edge CRUD, embeddings.go's EmbeddingStore contract shape, and
// schema.go's table-per-concern layout — all reimplemented against
// PAMPAX's Span/Edge/MemoryItem model instead of the teacher's
// Entity/Dependency model.
package store

import (
	"context"

	"github.com/anthropics/pampax/internal/graphtraverse"
	"github.com/anthropics/pampax/internal/model"
)

// Filters narrows a lookup to a subset of the indexed repository.
type Filters struct {
	PathGlob string
	Lang     string
	Tags     []string
}

// Store is the read surface spec.md §6 mandates. The core treats the
// Store as read-only during assembly; writeMemory/deleteMemory exist
// for CLI tooling and are never called from the assembly request path.
type Store interface {
	SearchLexical(ctx context.Context, query string, filters Filters, k int) ([]model.SearchResult, error)
	SearchVector(ctx context.Context, queryEmbedding []float32, filters Filters, k int) ([]model.SearchResult, error)
	GetSymbols(ctx context.Context, namesOrIDs []string) ([]model.Span, error)
	GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, direction graphtraverse.Direction) ([]model.Edge, error)
	GetMemory(ctx context.Context, sessionID string, filters Filters) ([]model.MemoryItem, error)
	WriteMemory(ctx context.Context, item model.MemoryItem) error
	DeleteMemory(ctx context.Context, id string) error
	IndexVersion(ctx context.Context) (string, error)

	// GetSpan resolves a single span id, used by the graph traverser's
	// SpanSource contract and by Pack's final content lookups.
	GetSpan(ctx context.Context, id string) (model.Span, bool, error)

	// AllEdges returns every edge in the repository's graph, used by
	// internal/metrics to build the adjacency that backs keystone
	// boosting during Fuse. Unlike GetEdges this is a full table scan,
	// not a per-node lookup, so callers should cache the result keyed by
	// IndexVersion rather than call it per request.
	AllEdges(ctx context.Context) ([]model.Edge, error)

	Close() error
}

// compile-time assertion that DoltStore satisfies Store, and that it
// satisfies the narrower contracts consumed by other components.
var (
	_ Store                        = (*DoltStore)(nil)
	_ graphtraverse.EdgeSource      = (*edgeSourceAdapter)(nil)
	_ graphtraverse.SpanSource      = (*spanSourceAdapter)(nil)
)

// edgeSourceAdapter/spanSourceAdapter narrow a Store down to exactly
// what the graph traverser needs, so C6 never depends on the full
// Store interface (or any SQL detail).
type edgeSourceAdapter struct{ s Store }
type spanSourceAdapter struct{ s Store }

func (a *edgeSourceAdapter) GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, dir graphtraverse.Direction) ([]model.Edge, error) {
	return a.s.GetEdges(ctx, from, kinds, dir)
}

func (a *spanSourceAdapter) GetSpan(ctx context.Context, id string) (model.Span, bool, error) {
	return a.s.GetSpan(ctx, id)
}

// AsEdgeSource and AsSpanSource adapt a Store to the graph traverser's
// narrower contracts.
func AsEdgeSource(s Store) graphtraverse.EdgeSource { return &edgeSourceAdapter{s: s} }
func AsSpanSource(s Store) graphtraverse.SpanSource { return &spanSourceAdapter{s: s} }

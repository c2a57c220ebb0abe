package assembler

import (
	"context"
	"sync"

	"github.com/anthropics/pampax/internal/intent"
	"github.com/anthropics/pampax/internal/model"
	"github.com/anthropics/pampax/internal/seedmix"
	"github.com/anthropics/pampax/internal/stopreason"
)

// producerOutcome is one producer's result, collected by retrieve and
// folded into the shared result/weight state after all four producers
// have returned or the retrieve deadline fires.
type producerOutcome struct {
	source  model.SearchSource
	results []model.SearchResult
	spans   map[string]model.Span
	err     error
}

// retrieve runs the four bounded parallel producers spec.md §4.10 step
// 3 names (lexical, vector, symbol, memory) and joins them with a
// WaitGroup rather than an errgroup, matching the teacher's preference
// for stdlib concurrency primitives (see DESIGN.md). A producer that
// errors has its weight zeroed for this request and a search-failure
// condition recorded; it does not abort the other three.
func (a *Assembler) retrieve(ctx context.Context, req Request, ir intent.Result, mix seedmix.Config, engine *stopreason.Engine) ([]model.SearchResult, map[string]model.Span, map[model.SearchSource]float64) {
	outcomes := make(chan producerOutcome, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := a.deps.Store.SearchLexical(ctx, req.Query, req.Filters, req.Limit)
		outcomes <- producerOutcome{source: model.SourceLex, results: res, err: err}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes <- a.produceVector(ctx, req)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes <- a.produceSymbols(ctx, ir.Entities)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes <- a.produceMemory(ctx, req)
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var all []model.SearchResult
	resolved := make(map[string]model.Span)
	weights := map[model.SearchSource]float64{
		model.SourceVec: mix.VectorWeight,
		model.SourceLex: mix.BM25Weight,
		model.SourceSym: mix.SymbolWeight,
		model.SourceMem: mix.MemoryWeight,
	}

	for outcome := range outcomes {
		if outcome.err != nil {
			weights[outcome.source] = 0
			engine.Record(model.StopSearchFailure, model.SeverityMed, model.PhaseRetrieve, model.StopFacts{})
			continue
		}
		all = append(all, outcome.results...)
		for id, span := range outcome.spans {
			resolved[id] = span
		}
	}

	return all, resolved, weights
}

func (a *Assembler) produceVector(ctx context.Context, req Request) producerOutcome {
	if a.deps.Embedder == nil {
		// No embedder configured: treat as producer unavailable rather
		// than silently dropping the source, so its absence is visible
		// in StoppingReasons the same way a live failure would be.
		return producerOutcome{source: model.SourceVec, err: errEmbedderUnavailable}
	}
	embedding, err := a.deps.Embedder.Embed(ctx, req.Query)
	if err != nil {
		return producerOutcome{source: model.SourceVec, err: err}
	}
	res, err := a.deps.Store.SearchVector(ctx, embedding, req.Filters, req.Limit)
	return producerOutcome{source: model.SourceVec, results: res, err: err}
}

func (a *Assembler) produceSymbols(ctx context.Context, entities []string) producerOutcome {
	if len(entities) == 0 {
		return producerOutcome{source: model.SourceSym}
	}
	spans, err := a.deps.Store.GetSymbols(ctx, entities)
	if err != nil {
		return producerOutcome{source: model.SourceSym, err: err}
	}
	results := make([]model.SearchResult, 0, len(spans))
	resolved := make(map[string]model.Span, len(spans))
	for i, sp := range spans {
		results = append(results, model.SearchResult{SpanID: sp.ID, Source: model.SourceSym, Rank: i + 1})
		resolved[sp.ID] = sp
	}
	return producerOutcome{source: model.SourceSym, results: results, spans: resolved}
}

func (a *Assembler) produceMemory(ctx context.Context, req Request) producerOutcome {
	if req.SessionID == "" {
		return producerOutcome{source: model.SourceMem}
	}
	items, err := a.deps.Store.GetMemory(ctx, req.SessionID, req.Filters)
	if err != nil {
		return producerOutcome{source: model.SourceMem, err: err}
	}
	results := make([]model.SearchResult, 0, len(items))
	resolved := make(map[string]model.Span, len(items))
	for i, it := range items {
		span := memoryItemToSpan(it)
		results = append(results, model.SearchResult{SpanID: span.ID, Source: model.SourceMem, Rank: i + 1})
		resolved[span.ID] = span
	}
	return producerOutcome{source: model.SourceMem, results: results, spans: resolved}
}

// memoryItemToSpan adapts a MemoryItem into the synthetic Span shape
// the rest of the pipeline (fuse, expand, pack) operates on uniformly.
// MemoryItem is not a Span in the data model (spec.md §3 keeps them
// distinct entities); this bridges the memory producer into the same
// tokencount.Item/Evidence machinery every other source uses, rather
// than forking Pack into a span path and a memory path.
func memoryItemToSpan(item model.MemoryItem) model.Span {
	return model.Span{
		ID:      item.ID,
		Repo:    item.Repo,
		Kind:    model.KindOther,
		Name:    "memory:" + item.ID,
		Content: item.Text,
	}
}

var errEmbedderUnavailable = &embedderUnavailableError{}

type embedderUnavailableError struct{}

func (e *embedderUnavailableError) Error() string { return "embedder not configured" }

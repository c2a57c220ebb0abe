// Package assembler implements the context assembler (C10): the state
// machine that drives a single assembly request through Classify, Plan,
// Retrieve, Fuse, Expand, Pack, and Explain, producing a model.Bundle.
//
// Grounded on the teacher's internal/context/smart.go SmartContext.Assemble
// (intent extraction -> entry point search -> flow tracing -> token
// accounting, as one sequential method with named steps), generalized
// into spec.md §4.10's full nine-phase machine over C2-C9 with bounded
// parallel retrieval and explicit phase deadlines instead of the
// teacher's single-threaded, untimed pipeline.
package assembler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anthropics/pampax/internal/cachelayer"
	"github.com/anthropics/pampax/internal/config"
	"github.com/anthropics/pampax/internal/embeddings"
	"github.com/anthropics/pampax/internal/evidence"
	"github.com/anthropics/pampax/internal/intent"
	"github.com/anthropics/pampax/internal/metrics"
	"github.com/anthropics/pampax/internal/model"
	"github.com/anthropics/pampax/internal/policy"
	"github.com/anthropics/pampax/internal/rank"
	"github.com/anthropics/pampax/internal/seedmix"
	"github.com/anthropics/pampax/internal/stopreason"
	"github.com/anthropics/pampax/internal/store"
	"github.com/anthropics/pampax/internal/tokencount"
)

// ErrorKind is the taxonomy spec.md §7 enumerates by name, not by Go
// type, so AssembleError carries the kind as a string-backed value.
type ErrorKind string

const (
	ErrInput   ErrorKind = "input"
	ErrStore   ErrorKind = "store"
	ErrTimeout ErrorKind = "timeout"
	ErrCancel  ErrorKind = "cancelled"
	ErrInternal ErrorKind = "internal"
)

// AssembleError is the only error type Assemble ever returns. Only
// InputError, a terminal StoreUnavailable, and InternalInvariant
// propagate as errors per spec.md §7; every other recoverable
// condition is folded into Bundle.StoppingReasons instead.
type AssembleError struct {
	Kind  ErrorKind
	Phase model.SessionPhase
	Hint  string
	Err   error
}

func (e *AssembleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (phase=%s): %s: %v", e.Kind, e.Phase, e.Hint, e.Err)
	}
	return fmt.Sprintf("%s (phase=%s): %s", e.Kind, e.Phase, e.Hint)
}

func (e *AssembleError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Assemble to the CLI exit code
// spec.md §6 mandates: 0 success, 2 config/input, 3 I/O, 4 timeout,
// 5 store unavailable, 1 other (including cancellation, which spec.md
// doesn't assign its own code).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *AssembleError
	if e, ok := err.(*AssembleError); ok {
		ae = e
	} else {
		return 1
	}
	switch ae.Kind {
	case ErrInput:
		return 2
	case ErrStore:
		return 5
	case ErrTimeout:
		return 4
	default:
		return 1
	}
}

// Request is the caller-supplied request surface spec.md §6 specifies:
// assemble(query, {budget, limit, model, filters, sessionId?, ...}).
type Request struct {
	Query        string
	Budget       int
	Limit        int
	Model        string
	Filters      store.Filters
	SessionID    string
	Enhanced     bool
	IncludeGraph bool
	Callers      int
	Callees      int
	GraphDepth   int
}

// Deps bundles the collaborators Assembler needs, constructed once by
// the caller (CLI or MCP server) and passed by reference, per spec.md
// §9's "no process-wide singletons" redesign note.
type Deps struct {
	Store    store.Store
	Cache    *cachelayer.Cache
	Embedder embeddings.Embedder // optional; nil disables the vector producer
	Config   *config.Config
	Hints    policy.RepoHints
}

// Assembler drives one assembly request at a time per (sessionId,
// querySignature), enforced by a process-local latch (spec.md §4.10,
// invariant 6).
type Assembler struct {
	deps     Deps
	seedmix  *seedmix.Optimizer
	latches  sync.Map // querySignature -> *sync.Mutex
}

// New constructs an Assembler. One instance should be shared by
// reference across requests so the seed mix cache and session latches
// are effective.
func New(deps Deps) *Assembler {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	return &Assembler{
		deps:    deps,
		seedmix: seedmix.New(),
	}
}

// querySignature is the at-most-one-per-session key: (sessionId, query,
// budget, model) collapsed into a single string via the cache layer's
// deterministic key helper.
func querySignature(req Request) string {
	return cachelayer.Key(req.SessionID, req.Query, fmt.Sprint(req.Budget), req.Model)
}

// Assemble runs the full Init -> ... -> Done|Error state machine for
// one request and returns the resulting Bundle.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*model.Bundle, error) {
	if req.Query == "" {
		return nil, &AssembleError{Kind: ErrInput, Phase: model.PhaseInit, Hint: "query must not be empty"}
	}
	if req.Budget <= 0 {
		return nil, &AssembleError{Kind: ErrInput, Phase: model.PhaseInit, Hint: "budget must be positive"}
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Model == "" {
		req.Model = "default"
	}

	sig := querySignature(req)
	latchVal, _ := a.latches.LoadOrStore(sig, &sync.Mutex{})
	latch := latchVal.(*sync.Mutex)
	latch.Lock()
	defer latch.Unlock()

	sess := &model.SessionState{
		SessionID: req.SessionID,
		Query:     req.Query,
		Budget:    req.Budget,
		Limit:     req.Limit,
		Phase:     model.PhaseInit,
		StartedAt: time.Now(),
	}
	sink := evidence.NewSink()
	engine := stopreason.New()
	partial := false

	bundle, err := a.run(ctx, req, sess, sink, engine, &partial)
	sess.UpdatedAt = time.Now()
	sess.EndedAt = sess.UpdatedAt
	if err != nil {
		sess.Phase = model.PhaseError
		sess.Err = err
		return nil, err
	}
	sess.Phase = model.PhaseDone
	return bundle, nil
}

func (a *Assembler) run(ctx context.Context, req Request, sess *model.SessionState, sink *evidence.Sink, engine *stopreason.Engine, partial *bool) (*model.Bundle, error) {
	cfg := a.deps.Config

	// --- Classify ---
	sess.Phase = model.PhaseClassify
	classifyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.ClassifyMS)*time.Millisecond)
	ir := intent.Classify(req.Query)
	cancel()
	sess.Intent = string(ir.Intent)
	sess.Confidence = ir.Confidence
	if classifyCtx.Err() == context.DeadlineExceeded {
		engine.Record(model.StopTimeout, model.SeverityMed, model.PhaseClassify, model.StopFacts{})
	}

	// --- Plan ---
	sess.Phase = model.PhasePlan
	pol := policy.Select(ir.Intent, a.deps.Hints)
	if override, ok := cfg.Policy[string(ir.Intent)]; ok {
		pol = config.ApplyPolicyOverride(pol, override)
	}
	mix := a.seedmix.Optimize(ir.Intent, pol, ir.Confidence)

	var indexVersion string
	err := store.WithRetry(ctx, func() error {
		v, e := a.deps.Store.IndexVersion(ctx)
		if e != nil {
			return e
		}
		indexVersion = v
		return nil
	})
	if err != nil {
		return nil, &AssembleError{Kind: ErrStore, Phase: model.PhasePlan, Hint: "store unavailable after retries", Err: err}
	}

	planKey := cachelayer.Key(querySignature(req), indexVersion)
	if a.deps.Cache != nil {
		if raw, hit, cacheErr := a.deps.Cache.Get(ctx, cachelayer.NamespaceBundlePlan, planKey, indexVersion); cacheErr == nil && hit {
			var cached model.Bundle
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				markCached(&cached)
				return &cached, nil
			}
		}
	}

	// --- Retrieve ---
	sess.Phase = model.PhaseRetrieve
	retrieveCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.RetrieveMS)*time.Millisecond)
	results, resolved, weights := a.retrieve(retrieveCtx, req, ir, mix, engine)
	cancel()
	if retrieveCtx.Err() == context.DeadlineExceeded {
		engine.Record(model.StopTimeout, model.SeverityMed, model.PhaseRetrieve, model.StopFacts{})
		*partial = true
	}

	// --- Fuse ---
	sess.Phase = model.PhaseFuse
	fused := rank.Fuse(results, weights, rank.DefaultK, req.Limit)
	if keystones := a.keystones(ctx, indexVersion); len(keystones) > 0 {
		fused = rank.ApplyKeystoneBoost(fused, keystones)
	}

	originalItems := make(map[string]tokencount.Item, len(fused))
	var items []tokencount.Item
	for i, f := range fused {
		span, ok := resolved[f.SpanID]
		if !ok {
			span, ok, err = a.deps.Store.GetSpan(ctx, f.SpanID)
			if err != nil || !ok {
				continue
			}
		}
		ev := model.Evidence{
			ItemID:         f.SpanID,
			Rank:           i + 1,
			ScoreBreakdown: model.ScoreBreakdown{FusedScore: f.FusedScore, PerSource: perSourceScores(f)},
		}
		ev.Source = dominantSource(f)
		it := tokencount.Item{Span: span, Score: f.FusedScore, Evidence: ev}
		items = append(items, it)
		originalItems[f.SpanID] = it
	}

	// --- Expand ---
	sess.Phase = model.PhaseExpand
	expandCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.ExpandMS)*time.Millisecond)
	graphItems := a.expand(expandCtx, req, pol, items, engine)
	cancel()
	if expandCtx.Err() == context.DeadlineExceeded {
		engine.Record(model.StopTimeout, model.SeverityMed, model.PhaseExpand, model.StopFacts{})
		*partial = true
	}
	for _, gi := range graphItems {
		items = append(items, gi)
		originalItems[gi.Span.ID] = gi
	}

	// --- Pack ---
	sess.Phase = model.PhasePack
	packCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.PackMS)*time.Millisecond)
	kept, report := tokencount.FitToBudget(items, req.Budget, req.Model)
	cancel()
	if packCtx.Err() == context.DeadlineExceeded {
		engine.Record(model.StopTimeout, model.SeverityMed, model.PhasePack, model.StopFacts{})
		*partial = true
	}

	if len(report.Degraded) > 0 {
		engine.Record(model.StopDegradationTriggered, model.SeverityLow, model.PhasePack, model.StopFacts{Seen: len(report.Degraded)})
	}
	if len(report.Dropped) > 0 {
		engine.Record(model.StopTokenBudgetExceeded, model.SeverityMed, model.PhasePack, model.StopFacts{Budget: req.Budget, Used: report.Used})
	}

	sortItems(kept)

	droppedSet := make(map[string]bool, len(report.Dropped))
	for _, id := range report.Dropped {
		droppedSet[id] = true
	}

	// --- Explain ---
	sess.Phase = model.PhaseExplain
	var bundleItems []model.BundleItem
	for _, it := range kept {
		sink.Record(it.Evidence)
		bundleItems = append(bundleItems, model.BundleItem{Span: it.Span, Evidence: it.Evidence})
	}
	var droppedEvidence []model.Evidence
	for id := range droppedSet {
		orig, ok := originalItems[id]
		if !ok {
			continue
		}
		ev := orig.Evidence
		ev.Reason = model.DropBudget
		sink.Record(ev)
		droppedEvidence = append(droppedEvidence, ev)
	}
	sort.Slice(droppedEvidence, func(i, j int) bool { return droppedEvidence[i].ItemID < droppedEvidence[j].ItemID })

	engine.EnsureCompletedNormally(model.PhaseExplain)
	sink.Close()

	var stats cachelayer.Stats
	if a.deps.Cache != nil {
		stats = a.deps.Cache.Stats()
	}
	bundle := &model.Bundle{
		SessionID:       req.SessionID,
		Intent:          string(ir.Intent),
		Policy:          pol.String(),
		Items:           bundleItems,
		DroppedEvidence: droppedEvidence,
		StoppingReasons: engine.Conditions(),
		Tokens: model.TokenReport{
			Budget:   req.Budget,
			Used:     report.Used,
			Model:    req.Model,
			Degraded: len(report.Degraded),
			Dropped:  len(report.Dropped),
		},
		CacheStats:  model.CacheStats{Hits: stats.Hits, Misses: stats.Misses},
		Partial:     *partial,
		AssembledAt: time.Now(),
	}

	if a.deps.Cache != nil {
		if raw, marshalErr := json.Marshal(bundle); marshalErr == nil {
			_ = a.deps.Cache.Put(ctx, cachelayer.NamespaceBundlePlan, planKey, indexVersion, raw)
		}
	}

	return bundle, nil
}

// markCached flips Evidence.Cached on every item in a bundle served from
// the C7 bundle-plan cache, so the markdown renderer and the caller can
// tell a cache hit from a freshly assembled bundle without comparing
// CacheStats counters.
func markCached(bundle *model.Bundle) {
	for i := range bundle.Items {
		bundle.Items[i].Evidence.Cached = true
	}
	for i := range bundle.DroppedEvidence {
		bundle.DroppedEvidence[i].Cached = true
	}
	bundle.CacheStats.Hits++
}

// keystones returns the set of structurally important span ids for the
// repository at indexVersion, computed by internal/metrics over the
// full edge graph and cached in the C7 traversal namespace so repeated
// requests against an unchanged index don't re-run PageRank. A cache
// miss or a store/serialization failure degrades to "no boost" rather
// than failing the request, matching the rest of Fuse's best-effort
// posture toward optional signals.
func (a *Assembler) keystones(ctx context.Context, indexVersion string) map[string]bool {
	const cacheKey = "keystones"

	if a.deps.Cache != nil {
		if raw, hit, err := a.deps.Cache.Get(ctx, cachelayer.NamespaceTraversal, cacheKey, indexVersion); err == nil && hit {
			var ids []string
			if json.Unmarshal(raw, &ids) == nil {
				out := make(map[string]bool, len(ids))
				for _, id := range ids {
					out[id] = true
				}
				return out
			}
		}
	}

	edges, err := a.deps.Store.AllEdges(ctx)
	if err != nil || len(edges) == 0 {
		return nil
	}

	adj := metrics.BuildAdjacency(edges)
	scores := metrics.ComputeKeystoneScores(adj, metrics.DefaultKeystoneConfig())
	inDegree, _ := metrics.Degrees(adj)
	thresholds := metrics.DefaultThresholds()

	var ids []string
	out := make(map[string]bool)
	for id, score := range scores {
		if metrics.IsKeystone(score, inDegree[id], thresholds) {
			out[id] = true
			ids = append(ids, id)
		}
	}

	if a.deps.Cache != nil {
		if raw, marshalErr := json.Marshal(ids); marshalErr == nil {
			_ = a.deps.Cache.Put(ctx, cachelayer.NamespaceTraversal, cacheKey, indexVersion, raw)
		}
	}

	return out
}

func perSourceScores(f model.FusedResult) map[model.SearchSource]float64 {
	out := make(map[model.SearchSource]float64, len(f.PerSource))
	for src, rnk := range f.PerSource {
		out[src] = 1.0 / float64(rank.DefaultK+rnk)
	}
	return out
}

// dominantSource returns the source with the best (lowest) rank, used
// as the evidence record's headline producer when multiple sources
// surfaced the same span.
func dominantSource(f model.FusedResult) model.SearchSource {
	best := model.SearchSource("")
	bestRank := int(^uint(0) >> 1)
	for _, src := range []model.SearchSource{model.SourceSym, model.SourceLex, model.SourceVec, model.SourceMem} {
		if r, ok := f.PerSource[src]; ok && r < bestRank {
			bestRank = r
			best = src
		}
	}
	return best
}

// sortItems orders kept items by fused/graph score descending, then
// path, then id — spec.md §4.10 step 6's "sort by fused score then
// path".
func sortItems(items []tokencount.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Span.Path != items[j].Span.Path {
			return items[i].Span.Path < items[j].Span.Path
		}
		return items[i].Span.ID < items[j].Span.ID
	})
}

package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/anthropics/pampax/internal/cachelayer"
	"github.com/anthropics/pampax/internal/graphtraverse"
	"github.com/anthropics/pampax/internal/model"
	"github.com/anthropics/pampax/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeStore is a minimal in-memory store.Store, enough to drive the
// four retrieve producers and the graph traverser without a real Dolt
// backend.
type fakeStore struct {
	spans        map[string]model.Span
	lex          []model.SearchResult
	lexErr       error
	sym          []model.Span
	edges        map[string][]model.Edge
	memory       []model.MemoryItem
	indexVersion string
}

func (s *fakeStore) SearchLexical(ctx context.Context, query string, filters store.Filters, k int) ([]model.SearchResult, error) {
	if s.lexErr != nil {
		return nil, s.lexErr
	}
	return s.lex, nil
}

func (s *fakeStore) SearchVector(ctx context.Context, queryEmbedding []float32, filters store.Filters, k int) ([]model.SearchResult, error) {
	return nil, nil
}

func (s *fakeStore) GetSymbols(ctx context.Context, namesOrIDs []string) ([]model.Span, error) {
	return s.sym, nil
}

func (s *fakeStore) GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, direction graphtraverse.Direction) ([]model.Edge, error) {
	return s.edges[from], nil
}

func (s *fakeStore) GetMemory(ctx context.Context, sessionID string, filters store.Filters) ([]model.MemoryItem, error) {
	return s.memory, nil
}

func (s *fakeStore) WriteMemory(ctx context.Context, item model.MemoryItem) error { return nil }
func (s *fakeStore) DeleteMemory(ctx context.Context, id string) error            { return nil }

func (s *fakeStore) IndexVersion(ctx context.Context) (string, error) {
	return s.indexVersion, nil
}

func (s *fakeStore) GetSpan(ctx context.Context, id string) (model.Span, bool, error) {
	sp, ok := s.spans[id]
	return sp, ok, nil
}

func (s *fakeStore) AllEdges(ctx context.Context) ([]model.Edge, error) {
	var out []model.Edge
	for _, es := range s.edges {
		out = append(out, es...)
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

var _ store.Store = (*fakeStore)(nil)

func span(id, name, content string) model.Span {
	return model.Span{ID: id, Repo: "repo", Path: id + ".go", Kind: model.KindFunction, Name: name, Content: content}
}

func baseStore() *fakeStore {
	return &fakeStore{
		spans: map[string]model.Span{
			"a": span("a", "Alpha", "func Alpha() { doThing() }"),
			"b": span("b", "Beta", "func Beta() { helper() }"),
		},
		lex:          []model.SearchResult{{SpanID: "a", Source: model.SourceLex, Rank: 1}, {SpanID: "b", Source: model.SourceLex, Rank: 2}},
		edges:        map[string][]model.Edge{},
		indexVersion: "v1",
	}
}

func TestAssembleSymbolLookup(t *testing.T) {
	a := New(Deps{Store: baseStore()})
	bundle, err := a.Assemble(context.Background(), Request{
		Query:  "where is Alpha defined",
		Budget: 4000,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if bundle.Intent != "symbol" {
		t.Errorf("Intent = %q, want symbol", bundle.Intent)
	}
	if len(bundle.Items) == 0 {
		t.Fatal("expected at least one bundle item")
	}
	if len(bundle.StoppingReasons) == 0 {
		t.Error("expected at least one stopping reason to be recorded")
	}
}

func TestAssembleConfigLookup(t *testing.T) {
	a := New(Deps{Store: baseStore()})
	bundle, err := a.Assemble(context.Background(), Request{
		Query:  "show me the app.yaml config defaults",
		Budget: 4000,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if bundle.Intent != "config" {
		t.Errorf("Intent = %q, want config", bundle.Intent)
	}
}

func TestAssembleBudgetSqueeze(t *testing.T) {
	st := baseStore()
	st.spans["a"] = span("a", "Alpha", strings.Repeat("alpha content body ", 200))
	st.spans["b"] = span("b", "Beta", strings.Repeat("beta content body ", 200))

	a := New(Deps{Store: st})
	bundle, err := a.Assemble(context.Background(), Request{
		Query:  "where is Alpha defined",
		Budget: 20,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if bundle.Tokens.Used > bundle.Tokens.Budget && bundle.Tokens.Dropped == 0 && bundle.Tokens.Degraded == 0 {
		t.Errorf("budget exceeded (%d > %d) with nothing dropped or degraded", bundle.Tokens.Used, bundle.Tokens.Budget)
	}
	if bundle.Tokens.Dropped == 0 && bundle.Tokens.Degraded == 0 {
		t.Error("expected degradation or dropping under a tight budget")
	}
	found := false
	for _, sr := range bundle.StoppingReasons {
		if sr.Kind == model.StopTokenBudgetExceeded || sr.Kind == model.StopDegradationTriggered {
			found = true
		}
	}
	if !found {
		t.Error("expected a token-budget-exceeded or degradation-triggered stopping reason")
	}
}

func TestAssembleProducerFailure(t *testing.T) {
	st := baseStore()
	st.lexErr = errors.New("lexical index unavailable")

	a := New(Deps{Store: st})
	bundle, err := a.Assemble(context.Background(), Request{
		Query:  "where is Alpha defined",
		Budget: 4000,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v, want nil (producer failure must not abort assembly)", err)
	}

	failures := 0
	for _, sr := range bundle.StoppingReasons {
		if sr.Kind == model.StopSearchFailure {
			failures++
		}
	}
	// One for the missing embedder (vector producer is always
	// unavailable in these tests), one for the forced lexical failure.
	if failures < 2 {
		t.Errorf("search-failure conditions = %d, want >= 2 (embedder + lexical)", failures)
	}
}

func TestAssembleGraphDepthCap(t *testing.T) {
	st := baseStore()
	// Only "a" surfaces from retrieval; "b" is reachable solely through
	// the graph edge, so it enters the traversal as a frontier node
	// (depth 1) rather than as a second seed.
	st.lex = []model.SearchResult{{SpanID: "a", Source: model.SourceLex, Rank: 1}}
	st.edges["a"] = []model.Edge{{From: "a", To: "b", Kind: model.EdgeCall}}
	st.spans["b"] = span("b", "Beta", "func Beta() {}")

	a := New(Deps{Store: st})
	bundle, err := a.Assemble(context.Background(), Request{
		Query:      "explain this codebase",
		Budget:     4000,
		Limit:      10,
		GraphDepth: 1,
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	found := false
	for _, sr := range bundle.StoppingReasons {
		if sr.Kind == model.StopGraphDepthLimit {
			found = true
		}
	}
	if !found {
		t.Error("expected a graph-depth-limit stopping reason with GraphDepth=1")
	}
}

func TestAssembleCacheWarmPath(t *testing.T) {
	dir := t.TempDir()
	cache, err := cachelayer.Open(dir)
	if err != nil {
		t.Fatalf("cachelayer.Open() error = %v", err)
	}
	defer cache.Close()

	a := New(Deps{Store: baseStore(), Cache: cache})
	req := Request{Query: "where is Alpha defined", Budget: 4000, Limit: 10}

	first, err := a.Assemble(context.Background(), req)
	if err != nil {
		t.Fatalf("first Assemble() error = %v", err)
	}
	for _, it := range first.Items {
		if it.Evidence.Cached {
			t.Error("first assembly should not be served from cache")
		}
	}

	second, err := a.Assemble(context.Background(), req)
	if err != nil {
		t.Fatalf("second Assemble() error = %v", err)
	}
	if second.CacheStats.Hits < 1 {
		t.Errorf("second bundle CacheStats.Hits = %d, want >= 1", second.CacheStats.Hits)
	}
	if len(second.Items) != len(first.Items) {
		t.Errorf("second bundle item count = %d, want %d", len(second.Items), len(first.Items))
	}
	for _, it := range second.Items {
		if !it.Evidence.Cached {
			t.Error("second assembly's items should be marked Cached")
		}
	}
}

func TestAssembleRejectsEmptyQuery(t *testing.T) {
	a := New(Deps{Store: baseStore()})
	_, err := a.Assemble(context.Background(), Request{Budget: 100})
	if err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode() = %d, want 2", ExitCode(err))
	}
}

func TestAssembleRejectsNonPositiveBudget(t *testing.T) {
	a := New(Deps{Store: baseStore()})
	_, err := a.Assemble(context.Background(), Request{Query: "anything", Budget: 0})
	if err == nil {
		t.Fatal("expected an error for a non-positive budget")
	}
}

func TestAssembleStoreUnavailable(t *testing.T) {
	st := baseStore()
	a := New(Deps{Store: &erroringIndexStore{fakeStore: st}})
	_, err := a.Assemble(context.Background(), Request{Query: "where is Alpha defined", Budget: 100})
	if err == nil {
		t.Fatal("expected an error when the store's index version cannot be read")
	}
	if ExitCode(err) != 5 {
		t.Errorf("ExitCode() = %d, want 5", ExitCode(err))
	}
}

// erroringIndexStore wraps fakeStore to simulate a store whose backing
// index is unreachable, exercising the Plan phase's store-unavailable
// error path.
type erroringIndexStore struct {
	*fakeStore
}

func (s *erroringIndexStore) IndexVersion(ctx context.Context) (string, error) {
	return "", errors.New("connection refused")
}

func TestAssembleLatchSerializesSameSession(t *testing.T) {
	st := baseStore()
	a := New(Deps{Store: st})
	req := Request{Query: "where is Alpha defined", Budget: 4000, Limit: 10, SessionID: "s1"}

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = a.Assemble(context.Background(), req)
			done <- struct{}{}
		}()
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first concurrent Assemble() never completed")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second concurrent Assemble() never completed")
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/dolthub/driver"

	"github.com/anthropics/pampax/internal/graphtraverse"
	"github.com/anthropics/pampax/internal/model"
)

// DoltStore is the Dolt-backed implementation of Store. The Dolt
// database lives at <repoDir>/pampax (version-controlled), matching
// the teacher's .cx/cortex/ layout convention.
type DoltStore struct {
	db     *sql.DB
	dbPath string
	vec    *vectorIndex
}

// OpenDolt opens or creates the Dolt-backed store rooted at repoDir,
// along with its side-car vector index (embeddingDim <= 0 uses the
// default dimension).
func OpenDolt(repoDir string, embeddingDim int) (*DoltStore, error) {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo directory: %w", err)
	}

	dbPath := filepath.Join(repoDir, "pampax")
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("create dolt directory: %w", err)
	}

	initDSN := fmt.Sprintf("file://%s?commitname=Pampax&commitemail=pampax@local", dbPath)
	initDB, err := sql.Open("dolt", initDSN)
	if err != nil {
		return nil, fmt.Errorf("open dolt for init: %w", err)
	}
	if _, err := initDB.Exec("CREATE DATABASE IF NOT EXISTS pampax"); err != nil {
		initDB.Close()
		return nil, fmt.Errorf("create database: %w", err)
	}
	initDB.Close()

	dsn := fmt.Sprintf("file://%s?commitname=Pampax&commitemail=pampax@local&database=pampax", dbPath)
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dolt db: %w", err)
	}

	s := &DoltStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	vec, err := openVectorIndex(repoDir, embeddingDim)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	s.vec = vec
	return s, nil
}

func (s *DoltStore) Close() error {
	if s.vec != nil {
		s.vec.Close()
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DoltStore) Path() string { return s.dbPath }

// UpsertEmbedding stores a span's embedding in the side-car vector
// index. Called by the ingest pipeline after a span is written to the
// spans table; not part of the Store interface since it is an
// indexing-time operation, not a request-path read.
func (s *DoltStore) UpsertEmbedding(ctx context.Context, spanID string, embedding []float32) error {
	if s.vec == nil {
		return fmt.Errorf("vector index not configured")
	}
	return s.vec.Upsert(ctx, spanID, embedding)
}

// UpsertSpan inserts or replaces a span row. Called by the ingest
// pipeline (`pampax index`) after an adapter.Adapter parses source
// files into model.Span values.
func (s *DoltStore) UpsertSpan(ctx context.Context, sp model.Span) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spans (id, repo, path, byte_start, byte_end, kind, name, signature, doc, content, parents, refs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			repo = VALUES(repo), path = VALUES(path), byte_start = VALUES(byte_start),
			byte_end = VALUES(byte_end), kind = VALUES(kind), name = VALUES(name),
			signature = VALUES(signature), doc = VALUES(doc), content = VALUES(content),
			parents = VALUES(parents), refs = VALUES(refs)`,
		sp.ID, sp.Repo, sp.Path, sp.ByteRange.Start, sp.ByteRange.End, string(sp.Kind), sp.Name, sp.Signature, sp.Doc, sp.Content,
		strings.Join(sp.Parents, ","), strings.Join(sp.References, ","))
	if err != nil {
		return fmt.Errorf("upsert span: %w", err)
	}
	return nil
}

// UpsertEdge inserts or replaces an edge row.
func (s *DoltStore) UpsertEdge(ctx context.Context, e model.Edge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (from_id, to_id, kind, weight)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE weight = VALUES(weight)`,
		e.From, e.To, string(e.Kind), e.Weight)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

// IndexVersion returns the repository's current Dolt commit hash, used
// as the monotonic token in every cache key (spec.md §6).
func (s *DoltStore) IndexVersion(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT @@pampax_head").Scan(&hash)
	if err != nil {
		// DOLT_HASHOF('HEAD') is the documented fallback when the
		// session variable isn't set (fresh connection).
		err = s.db.QueryRowContext(ctx, "SELECT DOLT_HASHOF('HEAD')").Scan(&hash)
		if err != nil {
			return "", fmt.Errorf("index version: %w", err)
		}
	}
	return hash, nil
}

func (s *DoltStore) GetSpan(ctx context.Context, id string) (model.Span, bool, error) {
	spans, err := s.GetSymbols(ctx, []string{id})
	if err != nil || len(spans) == 0 {
		return model.Span{}, false, err
	}
	return spans[0], true, nil
}

func (s *DoltStore) GetSymbols(ctx context.Context, namesOrIDs []string) ([]model.Span, error) {
	if len(namesOrIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(namesOrIDs))
	args := make([]interface{}, len(namesOrIDs)*2)
	for i, v := range namesOrIDs {
		placeholders[i] = "?"
		args[i] = v
		args[i+len(namesOrIDs)] = v
	}
	query := fmt.Sprintf(`
		SELECT id, repo, path, byte_start, byte_end, kind, name, signature, doc, content
		FROM spans
		WHERE id IN (%s) OR name IN (%s)`, joinPlaceholders(placeholders), joinPlaceholders(placeholders))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	defer rows.Close()

	var out []model.Span
	for rows.Next() {
		var sp model.Span
		var kind string
		if err := rows.Scan(&sp.ID, &sp.Repo, &sp.Path, &sp.ByteRange.Start, &sp.ByteRange.End, &kind, &sp.Name, &sp.Signature, &sp.Doc, &sp.Content); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		sp.Kind = model.SpanKind(kind)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func joinPlaceholders(p []string) string {
	out := ""
	for i, v := range p {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

// SearchLexical performs MySQL FULLTEXT search over span name, content,
// and doc — the same MATCH()...AGAINST() IN NATURAL LANGUAGE MODE
// pattern as the teacher's fts.go, since Dolt only supports natural
// language mode (no boolean operators).
func (s *DoltStore) SearchLexical(ctx context.Context, query string, filters Filters, k int) ([]model.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if k <= 0 {
		k = 10
	}
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT id,
		       MATCH(name, content, doc) AGAINST(? IN NATURAL LANGUAGE MODE) as fts_score
		FROM spans
		WHERE MATCH(name, content, doc) AGAINST(? IN NATURAL LANGUAGE MODE)`
	args := []interface{}{ftsQuery, ftsQuery}

	if filters.PathGlob != "" {
		sqlQuery += " AND path LIKE ?"
		args = append(args, globToLike(filters.PathGlob))
	}
	sqlQuery += " ORDER BY fts_score DESC LIMIT ?"
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var results []model.SearchResult
	rank := 1
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		results = append(results, model.SearchResult{SpanID: id, Source: model.SourceLex, Score: normalizeBM25Score(score), Rank: rank})
		rank++
	}
	return results, rows.Err()
}

// GetEdges fetches a span's edges, direction-aware: Callees follows
// outgoing (From=from) edges, Callers follows incoming (To=from)
// edges, Both unions them.
func (s *DoltStore) GetEdges(ctx context.Context, from string, kinds []model.EdgeKind, direction graphtraverse.Direction) ([]model.Edge, error) {
	var clauses []string
	var args []interface{}

	switch direction {
	case graphtraverse.Callers:
		clauses = append(clauses, "to_id = ?")
		args = append(args, from)
	case graphtraverse.Callees, "":
		clauses = append(clauses, "from_id = ?")
		args = append(args, from)
	case graphtraverse.Both:
		clauses = append(clauses, "(from_id = ? OR to_id = ?)")
		args = append(args, from, from)
	}

	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		clauses = append(clauses, fmt.Sprintf("kind IN (%s)", joinPlaceholders(placeholders)))
	}

	query := "SELECT from_id, to_id, kind, weight FROM edges WHERE " + joinAnd(clauses)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get edges: %w", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		var e model.Edge
		var kind string
		if err := rows.Scan(&e.From, &e.To, &kind, &e.Weight); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = model.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllEdges returns every edge in the edges table, for callers that need
// the whole graph (internal/metrics adjacency) rather than one node's
// neighborhood.
func (s *DoltStore) AllEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, kind, weight FROM edges")
	if err != nil {
		return nil, fmt.Errorf("get all edges: %w", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		var e model.Edge
		var kind string
		if err := rows.Scan(&e.From, &e.To, &kind, &e.Weight); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = model.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func joinAnd(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}

func (s *DoltStore) GetMemory(ctx context.Context, sessionID string, filters Filters) ([]model.MemoryItem, error) {
	query := "SELECT id, session_id, repo, scope, text, tags, created_at, last_used_at FROM memory_items WHERE session_id = ?"
	args := []interface{}{sessionID}
	if filters.PathGlob != "" {
		query += " AND repo LIKE ?"
		args = append(args, globToLike(filters.PathGlob))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	defer rows.Close()

	var out []model.MemoryItem
	for rows.Next() {
		var m model.MemoryItem
		var scope, tags, createdAt, lastUsedAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Repo, &scope, &m.Text, &tags, &createdAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("scan memory item: %w", err)
		}
		m.Scope = model.MemoryScope(scope)
		m.Tags = splitTags(tags)
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		m.LastUsedAt, _ = time.Parse(time.RFC3339, lastUsedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *DoltStore) WriteMemory(ctx context.Context, item model.MemoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_items (id, session_id, repo, scope, text, tags, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		  text=VALUES(text), tags=VALUES(tags), last_used_at=VALUES(last_used_at)`,
		item.ID, item.SessionID, item.Repo, string(item.Scope), item.Text, joinTags(item.Tags),
		item.CreatedAt.Format(time.RFC3339), item.LastUsedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

func (s *DoltStore) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM memory_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

func globToLike(glob string) string {
	out := make([]byte, 0, len(glob))
	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '*':
			out = append(out, '%')
		case '?':
			out = append(out, '_')
		default:
			out = append(out, glob[i])
		}
	}
	return string(out)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

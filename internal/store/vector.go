package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/anthropics/pampax/internal/model"
)

// vectorIndex is a side-car SQLite database holding a vec0-compatible
// virtual table for nearest-neighbor search, since Dolt has no native
// vector index. It lives next to the Dolt database directory rather
// than inside it, so an existing Dolt repo is never touched by
// anything other than Dolt itself.
type vectorIndex struct {
	db  *sql.DB
	dim int
}

const defaultEmbeddingDim = 768

func openVectorIndex(repoDir string, dim int) (*vectorIndex, error) {
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo directory: %w", err)
	}
	vecPath := filepath.Join(repoDir, "pampax-vec.db")

	db, err := sql.Open("sqlite", vecPath)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS span_vectors USING vec0()"); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vec0 table: %w", err)
	}

	return &vectorIndex{db: db, dim: dim}, nil
}

func (v *vectorIndex) Close() error {
	if v.db == nil {
		return nil
	}
	return v.db.Close()
}

// Upsert replaces a span's stored embedding.
func (v *vectorIndex) Upsert(ctx context.Context, spanID string, embedding []float32) error {
	if len(embedding) != v.dim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), v.dim)
	}
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM span_vectors WHERE span_id = ?", spanID); err != nil {
		return fmt.Errorf("delete stale vector: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO span_vectors(span_id, embedding) VALUES (?, ?)", spanID, encodeFloat32(embedding)); err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return tx.Commit()
}

func (v *vectorIndex) Delete(ctx context.Context, spanID string) error {
	_, err := v.db.ExecContext(ctx, "DELETE FROM span_vectors WHERE span_id = ?", spanID)
	return err
}

// Search scores every stored embedding against the query vector with
// vector_distance_cos and returns the k closest, ascending distance.
// This is a brute-force scan rather than an index-accelerated kNN:
// acceptable at the scale of a single repository's span count, and the
// same code path runs whether or not the real sqlite-vec cgo extension
// is linked in (init_vec.go), since this module never links cgo by
// default.
func (v *vectorIndex) Search(ctx context.Context, queryEmbedding []float32, k int) ([]model.SearchResult, error) {
	if len(queryEmbedding) != v.dim {
		return nil, fmt.Errorf("query embedding dimension mismatch: got %d, want %d", len(queryEmbedding), v.dim)
	}
	if k <= 0 {
		k = 10
	}
	rows, err := v.db.QueryContext(ctx, `
		SELECT span_id, vector_distance_cos(embedding, ?) AS distance
		FROM span_vectors
		ORDER BY distance ASC
		LIMIT ?`, encodeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []model.SearchResult
	rank := 1
	for rows.Next() {
		var spanID string
		var distance float64
		if err := rows.Scan(&spanID, &distance); err != nil {
			return nil, fmt.Errorf("scan vector result: %w", err)
		}
		out = append(out, model.SearchResult{
			SpanID: spanID,
			Source: model.SourceVec,
			Score:  1.0 - distance,
			Rank:   rank,
		})
		rank++
	}
	return out, rows.Err()
}

// SearchVector implements Store.SearchVector by delegating to the
// side-car vector index. Filters.PathGlob is applied post-hoc by
// joining against spans, since the vector table has no path column.
func (s *DoltStore) SearchVector(ctx context.Context, queryEmbedding []float32, filters Filters, k int) ([]model.SearchResult, error) {
	if s.vec == nil {
		return nil, fmt.Errorf("vector index not configured")
	}
	searchK := k
	if filters.PathGlob != "" {
		searchK = k * 4 // overfetch since some hits will be filtered out below
	}
	results, err := s.vec.Search(ctx, queryEmbedding, searchK)
	if err != nil {
		return nil, err
	}
	if filters.PathGlob == "" {
		return results, nil
	}

	filtered := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if len(filtered) >= k {
			break
		}
		sp, ok, err := s.GetSpan(ctx, r.SpanID)
		if err != nil {
			return nil, err
		}
		if ok && pathMatchesGlob(sp.Path, filters.PathGlob) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func pathMatchesGlob(path, glob string) bool {
	matched, err := filepath.Match(glob, path)
	return err == nil && matched
}

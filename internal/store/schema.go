package store

// schemaSQL defines the Dolt/MySQL-compatible schema. Unlike the
// teacher's internal/store/schema.go (which declared a SQLite FTS5
// virtual table while db.go/fts.go actually connect over the Dolt
// MySQL-compatible driver — a stale migration artifact from an earlier
// SQLite-only version), this schema uses a plain FULLTEXT INDEX, which
// is what Dolt's MySQL-compatible engine actually supports.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS spans (
    id TEXT PRIMARY KEY,
    repo TEXT NOT NULL,
    path TEXT NOT NULL,
    byte_start INT NOT NULL,
    byte_end INT NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    signature TEXT NOT NULL DEFAULT '',
    doc TEXT NOT NULL DEFAULT '',
    content LONGTEXT NOT NULL DEFAULT '',
    parents TEXT NOT NULL DEFAULT '',
    refs TEXT NOT NULL DEFAULT '',
    FULLTEXT INDEX idx_spans_fts (name, content, doc)
);

CREATE TABLE IF NOT EXISTS edges (
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    weight DOUBLE NOT NULL DEFAULT 0,
    PRIMARY KEY (from_id, to_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);

CREATE TABLE IF NOT EXISTS memory_items (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    repo TEXT NOT NULL,
    scope TEXT NOT NULL,
    text LONGTEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    last_used_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_items(session_id);
`

func (s *DoltStore) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}

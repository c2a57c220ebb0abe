package cachelayer

// schemaSQL defines the SQLite schema backing the three namespaced
// caches. A single table covers all three namespaces (search,
// traversal, bundle-plan) distinguished by the namespace column, since
// they share identical access patterns (key -> versioned blob with
// TTL+LRU eviction).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value BLOB NOT NULL,
    index_version TEXT NOT NULL,
    software_version TEXT NOT NULL,
    created_at TEXT NOT NULL,
    last_access_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_lru ON cache_entries(namespace, last_access_at DESC);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expiry ON cache_entries(expires_at);
`

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}

// Package cachelayer implements the cache layer (C7): three namespaced,
// versioned, TTL+LRU caches (search, traversal, bundle-plan) backed by
// SQLite, matching the teacher's on-disk cache idiom.
//
// Grounded on the teacher's internal/cache/cache.go (modernc.org/sqlite,
// WAL mode, Open/Close/Clear/Stats shape) and schema.go (a single
// schema.go holding the CREATE TABLE statements, applied once at Open).
package cachelayer

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Namespace identifies one of the three caches spec.md §4.7 mandates.
type Namespace string

const (
	NamespaceSearch      Namespace = "search"
	NamespaceTraversal   Namespace = "traversal"
	NamespaceBundlePlan  Namespace = "bundle-plan"
)

// DefaultTTL is the default per-namespace TTL (spec.md §4.7: "TTL per
// namespace (default 5 min)").
const DefaultTTL = 5 * time.Minute

// SoftwareVersion is stamped into every cache entry's metadata; bump it
// on any change to the cached value's shape.
const SoftwareVersion = "pampax-1"

// Cache is the SQLite-backed cache layer. One Cache instance should be
// constructed once per core instance and shared by reference.
type Cache struct {
	db      *sql.DB
	dbPath  string
	ttl     map[Namespace]time.Duration
	lruCap  int
	writeMu sync.Map // per-(namespace,key) latch, so concurrent writers to the same key serialize

	mu    sync.Mutex
	hits  int
	misses int
}

// Open opens or creates the cache database at dbDir/cache.db.
func Open(dbDir string) (*Cache, error) {
	dbPath := filepath.Join(dbDir, "cache.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &Cache{
		db:     db,
		dbPath: dbPath,
		lruCap: 10000,
		ttl: map[Namespace]time.Duration{
			NamespaceSearch:     DefaultTTL,
			NamespaceTraversal:  DefaultTTL,
			NamespaceBundlePlan: DefaultTTL,
		},
	}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.dbPath }

// SetTTL overrides the TTL for one namespace; used by tests and by
// config-driven TTL overrides.
func (c *Cache) SetTTL(ns Namespace, ttl time.Duration) {
	c.ttl[ns] = ttl
}

// Get looks up key in namespace, scoped to indexVersion. A value
// written under a different indexVersion is treated as a miss (spec.md
// §4.7/§8 testable property 10: "changing indexVersion() invalidates
// all prior hits for that version").
func (c *Cache) Get(ctx context.Context, ns Namespace, key, indexVersion string) ([]byte, bool, error) {
	var value []byte
	var expiresAtText string
	row := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries
		 WHERE namespace = ? AND key = ? AND index_version = ?`,
		string(ns), key, indexVersion)
	if err := row.Scan(&value, &expiresAtText); err != nil {
		if err == sql.ErrNoRows {
			c.recordMiss()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, expiresAtText)
	if err != nil {
		return nil, false, fmt.Errorf("cache get: parse expires_at: %w", err)
	}
	if time.Now().After(expiresAt) {
		c.recordMiss()
		return nil, false, nil
	}
	c.touch(ctx, ns, key)
	c.recordHit()
	return value, true, nil
}

// Put writes value under (ns, key, indexVersion), serialized per-key so
// concurrent writers to the same entry don't interleave, then enforces
// the namespace's LRU cap.
func (c *Cache) Put(ctx context.Context, ns Namespace, key, indexVersion string, value []byte) error {
	latchKey := string(ns) + "\x1f" + key
	latch, _ := c.writeMu.LoadOrStore(latchKey, &sync.Mutex{})
	mu := latch.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	ttl := c.ttl[ns]
	if ttl == 0 {
		ttl = DefaultTTL
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, index_version, software_version, created_at, last_access_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		   value=excluded.value, index_version=excluded.index_version,
		   software_version=excluded.software_version, created_at=excluded.created_at,
		   last_access_at=excluded.last_access_at, expires_at=excluded.expires_at`,
		string(ns), key, value, indexVersion, SoftwareVersion,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), now.Add(ttl).Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return c.evictLRU(ctx, ns)
}

func (c *Cache) touch(ctx context.Context, ns Namespace, key string) {
	_, _ = c.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_access_at = ? WHERE namespace = ? AND key = ?`,
		time.Now().Format(time.RFC3339Nano), string(ns), key)
}

// evictLRU removes the least-recently-used entries in ns beyond lruCap.
func (c *Cache) evictLRU(ctx context.Context, ns Namespace) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM cache_entries
		WHERE namespace = ? AND key NOT IN (
			SELECT key FROM cache_entries WHERE namespace = ?
			ORDER BY last_access_at DESC LIMIT ?
		)`, string(ns), string(ns), c.lruCap)
	return err
}

// Warm bulk-loads entries into ns, used by the `cache warm` CLI
// subcommand and by tests seeding a populated cache.
func (c *Cache) Warm(ctx context.Context, ns Namespace, indexVersion string, entries map[string][]byte) error {
	for key, value := range entries {
		if err := c.Put(ctx, ns, key, indexVersion, value); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes all entries in ns. Namespace="" clears every namespace.
func (c *Cache) Clear(ctx context.Context, ns Namespace) error {
	if ns == "" {
		_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
		return err
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, string(ns))
	return err
}

// Stats reports cache hit/miss counters for this process's Cache
// instance.
type Stats struct {
	Hits   int
	Misses int
}

// Stats returns the current hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Package seedmix implements the seed mix optimizer (C4): turns an
// intent and policy into per-producer weights, a depth cap, an
// early-stop threshold, and a confidence multiplier, memoized with an
// LRU+TTL cache keyed by (intentHash, policyHash).
//
// Grounded on the teacher's internal/context/smart.go HybridWeights /
// DefaultHybridWeights (a small, named weight struct per source,
// rather than a loose map) generalized to spec.md §4.4's four-producer
// mix plus depth/early-stop/confidence fields.
package seedmix

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/pampax/internal/intent"
	"github.com/anthropics/pampax/internal/policy"
)

// Config is the seed mix produced for one (intent, policy) pair.
type Config struct {
	VectorWeight         float64
	BM25Weight           float64
	MemoryWeight         float64
	SymbolWeight         float64
	MaxDepth             int
	EarlyStopThreshold   int
	ConfidenceMultiplier float64
}

// baseFor builds the unscaled per-producer weights for an intent,
// read off policy.SeedWeights' keys (lex/vec/sym, plus a fixed memory
// share) so the two tables can't silently drift apart.
func baseFor(k intent.Kind, p policy.Policy) Config {
	return Config{
		VectorWeight: p.SeedWeights["vec"],
		BM25Weight:   p.SeedWeights["lex"],
		SymbolWeight: p.SeedWeights["sym"],
		MemoryWeight: memoryShare(k),
		MaxDepth:     p.MaxDepth,
		EarlyStopThreshold: p.EarlyStopThreshold,
	}
}

// memoryShare is a small fixed allocation carved out for the memory
// producer; it is not part of policy.SeedWeights because memory items
// are session-scoped rather than an indexed source.
func memoryShare(k intent.Kind) float64 {
	if k == intent.Incident {
		return 0.1
	}
	return 0.05
}

// Metrics accumulates counters for observability, matching spec.md
// §4.4 ("per-intent counts, cache hit rate, early-stop activations").
type Metrics struct {
	mu                sync.Mutex
	PerIntentCount    map[intent.Kind]int
	CacheHits         int
	CacheMisses       int
	EarlyStopActivations int
}

func newMetrics() *Metrics {
	return &Metrics{PerIntentCount: make(map[intent.Kind]int)}
}

func (m *Metrics) recordLookup(k intent.Kind, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PerIntentCount[k]++
	if hit {
		m.CacheHits++
	} else {
		m.CacheMisses++
	}
}

// RecordEarlyStop increments the early-stop activation counter. No
// package in this module calls it (the graph traverser does not apply
// Config.EarlyStopThreshold), so EarlyStopActivations stays 0 unless a
// caller records activations itself.
func (m *Metrics) RecordEarlyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EarlyStopActivations++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := Metrics{PerIntentCount: make(map[intent.Kind]int, len(m.PerIntentCount))}
	for k, v := range m.PerIntentCount {
		cp.PerIntentCount[k] = v
	}
	cp.CacheHits = m.CacheHits
	cp.CacheMisses = m.CacheMisses
	cp.EarlyStopActivations = m.EarlyStopActivations
	return cp
}

type cacheEntry struct {
	value      Config
	expiresAt  time.Time
	key        string
	prev, next *cacheEntry
}

// Optimizer computes and memoizes seed mixes. One Optimizer should be
// constructed once per core instance (spec.md §9: "instantiate once at
// the core's construction and pass by reference; no process-wide
// singletons").
type Optimizer struct {
	mu      sync.Mutex
	ttl     time.Duration
	cap     int
	entries map[string]*cacheEntry
	head    *cacheEntry // most recently used
	tail    *cacheEntry // least recently used
	metrics *Metrics
	now     func() time.Time
}

// DefaultTTL and DefaultCap implement spec.md §4.4's mandated minimums
// (LRU cap >= 256, TTL 5 minutes).
const (
	DefaultTTL = 5 * time.Minute
	DefaultCap = 256
)

// New constructs an Optimizer with the default cap and TTL.
func New() *Optimizer {
	return NewWithLimits(DefaultCap, DefaultTTL)
}

// NewWithLimits constructs an Optimizer with an explicit cap and TTL,
// for tests that want to exercise eviction without waiting 5 minutes.
func NewWithLimits(cap int, ttl time.Duration) *Optimizer {
	if cap < 1 {
		cap = DefaultCap
	}
	return &Optimizer{
		ttl:     ttl,
		cap:     cap,
		entries: make(map[string]*cacheEntry),
		metrics: newMetrics(),
		now:     time.Now,
	}
}

// Metrics returns the optimizer's metrics sink.
func (o *Optimizer) Metrics() *Metrics {
	return o.metrics
}

// Optimize returns the SeedMixConfig for (k, p, confidence), memoized
// by (intentHash, policyHash). confidence must be in [0,1]; weights are
// scaled by (0.7 + 0.3*confidence) per spec.md §4.4.
func (o *Optimizer) Optimize(k intent.Kind, p policy.Policy, confidence float64) Config {
	key := cacheKey(k, p)

	o.mu.Lock()
	if e, ok := o.entries[key]; ok && o.now().Before(e.expiresAt) {
		o.touch(e)
		o.mu.Unlock()
		o.metrics.recordLookup(k, true)
		return scaled(e.value, confidence)
	}
	o.mu.Unlock()
	o.metrics.recordLookup(k, false)

	base := baseFor(k, p)
	base.ConfidenceMultiplier = 1.0 // unscaled form stored in cache

	o.mu.Lock()
	o.put(key, base)
	o.mu.Unlock()

	return scaled(base, confidence)
}

func scaled(base Config, confidence float64) Config {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	mult := 0.7 + 0.3*confidence
	return Config{
		VectorWeight:         base.VectorWeight * mult,
		BM25Weight:           base.BM25Weight * mult,
		MemoryWeight:         base.MemoryWeight * mult,
		SymbolWeight:         base.SymbolWeight * mult,
		MaxDepth:             base.MaxDepth,
		EarlyStopThreshold:   base.EarlyStopThreshold,
		ConfidenceMultiplier: mult,
	}
}

// touch moves e to the front of the LRU list. Caller must hold o.mu.
func (o *Optimizer) touch(e *cacheEntry) {
	if o.head == e {
		return
	}
	o.unlink(e)
	o.pushFront(e)
}

func (o *Optimizer) unlink(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if o.head == e {
		o.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if o.tail == e {
		o.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (o *Optimizer) pushFront(e *cacheEntry) {
	e.prev = nil
	e.next = o.head
	if o.head != nil {
		o.head.prev = e
	}
	o.head = e
	if o.tail == nil {
		o.tail = e
	}
}

// put inserts or refreshes key's entry. Caller must hold o.mu.
func (o *Optimizer) put(key string, value Config) {
	if e, ok := o.entries[key]; ok {
		e.value = value
		e.expiresAt = o.now().Add(o.ttl)
		o.touch(e)
		return
	}
	e := &cacheEntry{value: value, expiresAt: o.now().Add(o.ttl), key: key}
	o.entries[key] = e
	o.pushFront(e)
	if len(o.entries) > o.cap {
		o.evictOldest()
	}
}

func (o *Optimizer) evictOldest() {
	if o.tail == nil {
		return
	}
	delete(o.entries, o.tail.key)
	o.unlink(o.tail)
}

// cacheKey builds the memoization key from the intent and the
// policy's semantically meaningful fields (a stable, explicit encoding
// rather than hashing a serialized struct, so it can't drift silently
// if Policy gains fields that don't affect the seed mix).
func cacheKey(k intent.Kind, p policy.Policy) string {
	var b strings.Builder
	b.WriteString(string(k))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(p.MaxDepth))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(p.EarlyStopThreshold))
	for _, src := range []string{"lex", "vec", "sym", "graph"} {
		b.WriteByte('|')
		b.WriteString(src)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p.SeedWeights[src], 'f', 6, 64))
	}
	return b.String()
}

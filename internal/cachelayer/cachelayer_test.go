package cachelayer

import (
	"context"
	"os"
	"testing"
	"time"
)

func setupTestCache(t *testing.T) (*Cache, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "pampax-cache-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	cache, err := Open(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open cache: %v", err)
	}
	return cache, func() {
		cache.Close()
		os.RemoveAll(tmpDir)
	}
}

func TestCachePutGetRoundTrip(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	if err := cache.Put(ctx, NamespaceSearch, "q1", "v1", []byte("result-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, hit, err := cache.Get(ctx, NamespaceSearch, "q1", "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(value) != "result-bytes" {
		t.Fatalf("value = %q, want %q", value, "result-bytes")
	}
}

func TestCacheIndexVersionChangeInvalidates(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	cache.Put(ctx, NamespaceSearch, "q1", "v1", []byte("first"))
	_, hit, _ := cache.Get(ctx, NamespaceSearch, "q1", "v2")
	if hit {
		t.Fatal("expected miss after indexVersion changed")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()
	cache.SetTTL(NamespaceTraversal, 10*time.Millisecond)
	ctx := context.Background()

	cache.Put(ctx, NamespaceTraversal, "k", "v1", []byte("x"))
	time.Sleep(25 * time.Millisecond)

	_, hit, _ := cache.Get(ctx, NamespaceTraversal, "k", "v1")
	if hit {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestCacheClearNamespace(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	cache.Put(ctx, NamespaceSearch, "a", "v1", []byte("x"))
	cache.Put(ctx, NamespaceBundlePlan, "b", "v1", []byte("y"))

	if err := cache.Clear(ctx, NamespaceSearch); err != nil {
		t.Fatalf("clear: %v", err)
	}

	_, hit, _ := cache.Get(ctx, NamespaceSearch, "a", "v1")
	if hit {
		t.Fatal("expected search namespace cleared")
	}
	_, hit, _ = cache.Get(ctx, NamespaceBundlePlan, "b", "v1")
	if !hit {
		t.Fatal("expected bundle-plan namespace untouched by clearing search")
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("query", SortedJoin([]string{"b", "a"}), "policy", "v1")
	b := Key("query", SortedJoin([]string{"a", "b"}), "policy", "v1")
	if a != b {
		t.Fatalf("Key not order-independent for filter sets: %q vs %q", a, b)
	}
}

package cachelayer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key derives a deterministic cache key from an ordered list of
// components, matching spec.md §4.7's key formulas (e.g.
// hash(query|filters|policy|indexVersion)). Components are joined with
// a delimiter that cannot appear in any individual component's own
// serialization.
func Key(components ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(components, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// SortedJoin canonicalizes an unordered set of strings (e.g. filter
// tags) into a stable component for use in Key, so that two logically
// identical filter sets never produce different cache keys merely
// because they were constructed in a different order.
func SortedJoin(values []string) string {
	cp := append([]string(nil), values...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}

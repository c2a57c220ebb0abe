//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Building with -tags sqlite_vec registers the real sqlite-vec
// extension for accelerated ANN search. Without the tag (the default,
// cgo-free build matching the rest of this module's pure-Go stack),
// vec_compat.go provides a brute-force fallback with identical SQL
// surface (embedding BLOB column + vector_distance_cos), so callers
// never need to know which is active.
func init() {
	vec.Auto()
}

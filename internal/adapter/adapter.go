// Package adapter implements the external Adapter contract (spec.md §6):
// a language-specific parser turning source files into Spans and Edges.
// Adapters are registered through an explicit capability table rather
// than a package-level global, per spec.md §9's plugin-registry
// redesign note, so that a caller assembling a pipeline controls
// exactly which adapters are live.
package adapter

import (
	"context"

	"github.com/anthropics/pampax/internal/model"
)

// FileInput is a single source file to parse.
type FileInput struct {
	Repo    string
	Path    string
	Content []byte
}

// Result is what an Adapter produces for a batch of files.
type Result struct {
	Spans []model.Span
	Edges []model.Edge
}

// ProgressEvent reports incremental parse progress for CLI/MCP callers
// that want to show a progress bar over a large file batch.
type ProgressEvent struct {
	Path string
	Done int
	Total int
	Err  error
}

// Adapter parses a batch of files belonging to its language(s) into
// the shared Span/Edge model.
type Adapter interface {
	// ID identifies the adapter, e.g. "go-tree-sitter".
	ID() string

	// Supports reports whether this adapter can parse the given path,
	// typically by file extension.
	Supports(path string) bool

	// Parse parses files, invoking onProgress (if non-nil) after each
	// file completes. Returns partial results alongside an error for
	// files that fail to parse; a single bad file never aborts the
	// whole batch.
	Parse(ctx context.Context, files []FileInput, onProgress func(ProgressEvent)) (Result, error)
}

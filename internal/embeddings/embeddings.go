// Package embeddings generates vector embeddings for span content, used
// by C5's vector search leg (SearchSource "vec").
package embeddings

import "context"

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion returns the model identifier for cache invalidation.
	ModelVersion() string

	// Dimensions returns the embedding vector dimension.
	Dimensions() int

	// Close releases resources held by the embedder.
	Close() error
}

// PrepareSpanContent builds the text an embedder consumes for a span:
// kind, name, signature, and doc folded into one string so embeddings
// capture structure as well as prose.
func PrepareSpanContent(kind, name, signature, doc string) string {
	text := kind + " " + name
	if signature != "" {
		text += "\n" + signature
	}
	if doc != "" {
		text += "\n" + doc
	}
	return text
}

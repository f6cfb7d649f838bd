// Package embeddings defines the Provider interface for text-embedding
// backends used by the vector collections, plus a caching decorator.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider maps text to dense float32 vectors. All vectors returned by one
// Provider share the same dimensionality.
type Provider interface {
	// Embed computes the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embeddings for texts in one call. The i-th result
	// corresponds to texts[i]; on error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of every vector this provider produces.
	Dimensions() int

	// ModelID returns the model identifier, used to key cached vectors.
	ModelID() string
}

// Package embedder provides the text embedding capability used to vectorize
// questions and records.
package embedder

import "context"

// Embedder generates embedding vectors of a fixed dimensionality per
// deployment.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

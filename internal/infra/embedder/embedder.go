// Package embedder turns text into fixed-dimension vectors through an
// OpenAI-compatible embeddings endpoint, typically a local deployment of an
// all-MiniLM-L6-v2 class model.
package embedder

import (
	"context"
	"errors"
)

// Client is the embedding port used by the index and search stages.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrDimensionMismatch means the endpoint serves vectors of a different
// width than EMBEDDING_DIM. Stored vectors and queries would be incomparable,
// so startup must fail on it.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

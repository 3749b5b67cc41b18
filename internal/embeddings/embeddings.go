// Package embeddings turns text into fixed-length vectors.
package embeddings

import (
	"context"
	"errors"
)

// ErrDimensionMismatch means the provider produces vectors of a different
// length than the vector index expects. It is a configuration error.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider produces vector representations for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder is what the rest of the service depends on: a Provider with a
// known output dimension.
type Embedder interface {
	Provider
	Dimension() int
}

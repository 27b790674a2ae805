// Package embedding wraps the vision-language encoders that turn product
// text and images into unit-norm vectors.
package embedding

import "context"

// Embedder produces unit-norm vector embeddings for text and images. Both
// operations are treated as slow, fallible, and side-effect-free; callers
// encode before taking any index lock.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
	Close() error
}

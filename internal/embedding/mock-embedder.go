package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/mekiki/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and the "mock" embedding
// kind. The same text or image path always yields the same unit vector, so
// search results are reproducible without a model.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic unit vectors of
// the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic unit vector derived from the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.derive("text:" + text), nil
}

// EmbedImage returns a deterministic unit vector derived from the path hash.
// The file is not read; the path alone identifies the image in mock mode.
func (e *MockEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	return e.derive("image:" + path), nil
}

func (e *MockEmbedder) derive(key string) []float32 {
	h := HashString(key)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

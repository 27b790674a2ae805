// Package vector provides append-only vector indices with exact
// inner-product similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with the
// index's fixed dimension. The index is never mutated on a mismatch.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index defines append-only vector storage with exact top-k search.
// Slots are dense, zero-based, and assigned in insertion order.
type Index interface {
	// Add appends a vector and returns its slot (the count before insertion).
	Add(ctx context.Context, vec []float32) (int, error)
	// Search returns up to k results sorted descending by score, ties broken
	// by ascending slot. An empty index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Size() int
	// Dimensions returns the fixed dimension, or 0 before the first insert.
	Dimensions() int
	Save(path string) error
	Load(path string) error
}

// Result is a single vector search hit.
type Result struct {
	Slot  int
	Score float64 // inner product; equals cosine similarity for unit vectors
}

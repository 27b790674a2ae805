// Package keyword provides exact-term search over product titles and
// descriptions, complementing the embedding indices.
package keyword

import (
	"context"

	"github.com/hyperjump/mekiki/internal/models"
)

// Index defines keyword indexing and search keyed by slot.
type Index interface {
	Index(ctx context.Context, slot int, record *models.Product) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	Slot  int
	Score float64
}

// SearchOptions tunes keyword ranking.
type SearchOptions struct {
	// TitleBoost multiplies the weight of title matches relative to
	// description matches. Values <= 1 leave ranking untouched.
	TitleBoost float64
}

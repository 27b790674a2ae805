package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/models"
)

// SearchByKeyword runs an exact keyword search over product titles and
// descriptions and resolves the hits to product records, deduplicated by
// product id like the vector paths.
func (e *Engine) SearchByKeyword(ctx context.Context, query string, topK int) ([]*models.SearchResult, error) {
	if e.keywordIndex == nil {
		return nil, fmt.Errorf("%w: keyword search not configured", ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	hits, err := e.keywordIndex.Search(ctx, query, topK*overfetchFactor)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	seen := make(map[string]bool, len(hits))
	out := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		record, err := e.manager.GetProduct(ctx, hit.Slot)
		if errors.Is(err, catalog.ErrNotFound) {
			// Stale keyword hit, e.g. a rebuilt Bleve index ahead of the
			// catalog. The remaining hits are still valid.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("metadata lookup for slot %d: %w", hit.Slot, err)
		}
		if seen[record.ProductID] {
			continue
		}
		seen[record.ProductID] = true
		out = append(out, &models.SearchResult{
			Slot:    hit.Slot,
			Product: record,
			Score:   hit.Score,
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Package search provides the query engine: single-modality search,
// deduplication by product, and hybrid text+image fusion.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/config"
	"github.com/hyperjump/mekiki/internal/embedding"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/keyword"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/vector"
)

// ErrInvalidArgument is returned for requests that cannot be dispatched, e.g.
// hybrid search with neither a text nor an image query.
var ErrInvalidArgument = errors.New("invalid argument")

// overfetchFactor is how many raw candidates are fetched per requested result
// to leave room for collapsing multiple slots of the same product.
const overfetchFactor = 3

// Engine runs product searches on top of the index manager. It is stateless
// per call; query encoding happens before any index lock is taken.
type Engine struct {
	manager      *index.Manager
	embedder     embedding.Embedder
	keywordIndex keyword.Index
	config       *config.SearchConfig
}

// NewEngine creates a query engine. keywordIndex may be nil; keyword searches
// then fail with ErrInvalidArgument.
func NewEngine(
	manager *index.Manager,
	embedder embedding.Embedder,
	keywordIndex keyword.Index,
	cfg *config.SearchConfig,
) *Engine {
	return &Engine{
		manager:      manager,
		embedder:     embedder,
		keywordIndex: keywordIndex,
		config:       cfg,
	}
}

// Search validates query, encodes its text/image inputs, and dispatches to
// the mode's search operation, returning ranked document-level results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var results []*models.SearchResult
	var err error
	switch query.Mode {
	case models.ModeText:
		var vec []float32
		if vec, err = e.embedder.EmbedText(ctx, query.Query); err != nil {
			return nil, fmt.Errorf("text encoding failed: %w", err)
		}
		results, err = e.SearchByText(ctx, vec, query.Limit)
	case models.ModeImage:
		var vec []float32
		if vec, err = e.embedder.EmbedImage(ctx, query.ImagePath); err != nil {
			return nil, fmt.Errorf("image encoding failed: %w", err)
		}
		results, err = e.SearchByImage(ctx, vec, query.Limit)
	case models.ModeHybrid:
		var textVec, imageVec []float32
		if query.Query != "" {
			if textVec, err = e.embedder.EmbedText(ctx, query.Query); err != nil {
				return nil, fmt.Errorf("text encoding failed: %w", err)
			}
		}
		if query.ImagePath != "" {
			if imageVec, err = e.embedder.EmbedImage(ctx, query.ImagePath); err != nil {
				return nil, fmt.Errorf("image encoding failed: %w", err)
			}
		}
		weight := e.config.DefaultTextWeight
		if query.TextWeight != nil {
			weight = *query.TextWeight
		}
		results, err = e.HybridSearch(ctx, textVec, imageVec, query.Limit, weight)
	case models.ModeKeyword:
		results, err = e.SearchByKeyword(ctx, query.Query, query.Limit)
	default:
		return nil, fmt.Errorf("%w: unknown mode %s", ErrInvalidArgument, query.Mode)
	}
	if err != nil {
		return nil, err
	}

	for i, r := range results {
		r.Rank = i + 1
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		Mode:      query.Mode,
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}, nil
}

// SearchByImage returns the top-k products by image similarity, one entry per
// product id (the best-scoring slot wins).
func (e *Engine) SearchByImage(ctx context.Context, queryVec []float32, topK int) ([]*models.SearchResult, error) {
	return e.searchModality(ctx, e.manager.SearchImage, e.manager.ImageCount(), queryVec, topK)
}

// SearchByText returns the top-k products by text similarity, one entry per
// product id (the best-scoring slot wins).
func (e *Engine) SearchByText(ctx context.Context, queryVec []float32, topK int) ([]*models.SearchResult, error) {
	return e.searchModality(ctx, e.manager.SearchText, e.manager.TextCount(), queryVec, topK)
}

type rawSearch func(ctx context.Context, query []float32, k int) ([]vector.Result, error)

func (e *Engine) searchModality(ctx context.Context, search rawSearch, size int, queryVec []float32, topK int) ([]*models.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if size == 0 {
		return []*models.SearchResult{}, nil
	}
	searchK := topK * overfetchFactor
	if searchK > size {
		searchK = size
	}
	raw, err := search(ctx, queryVec, searchK)
	if err != nil {
		return nil, err
	}
	deduped, err := e.dedupeByProduct(ctx, raw)
	if err != nil {
		return nil, err
	}
	if len(deduped) > topK {
		deduped = deduped[:topK]
	}
	return deduped, nil
}

// dedupeByProduct resolves each raw hit to its product record and keeps only
// the best-scoring slot per product id. Raw hits arrive sorted descending by
// score with ties by ascending slot, so the first occurrence of a product id
// is its winner and the output order is already final. A hit whose metadata
// record is unexpectedly missing is skipped and the remaining hits stay
// valid; any other lookup failure (lock contention, cancellation) aborts the
// query so contention surfaces as ErrBusy instead of an empty result set.
func (e *Engine) dedupeByProduct(ctx context.Context, raw []vector.Result) ([]*models.SearchResult, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]*models.SearchResult, 0, len(raw))
	for _, hit := range raw {
		record, err := e.manager.GetProduct(ctx, hit.Slot)
		if errors.Is(err, catalog.ErrNotFound) {
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
	}
	return out, nil
}

package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/mekiki/internal/models"
)

// HybridSearch fuses text and image similarity into one weighted score per
// product. With only one query vector supplied it delegates entirely to that
// modality's search and performs no fusion, so a text-only hybrid request is
// identical to SearchByText. textWeight scales the text component; the image
// component gets 1-textWeight.
//
// Fusion assumes both encoders score in the same numeric range (cosine of
// unit vectors). If the two models' score distributions differ in practice,
// textWeight needs recalibrating; the engine does not rescale silently.
func (e *Engine) HybridSearch(ctx context.Context, textVec, imageVec []float32, topK int, textWeight float64) ([]*models.SearchResult, error) {
	if textVec == nil && imageVec == nil {
		return nil, fmt.Errorf("%w: hybrid search needs a text vector, an image vector, or both", ErrInvalidArgument)
	}
	if textWeight < 0 || textWeight > 1 {
		return nil, fmt.Errorf("%w: text weight %v outside [0,1]", ErrInvalidArgument, textWeight)
	}
	if imageVec == nil {
		return e.SearchByText(ctx, textVec, topK)
	}
	if textVec == nil {
		return e.SearchByImage(ctx, imageVec, topK)
	}

	// Candidate pools from both modalities; 2x widens the union so a product
	// strong in only one modality still makes the final cut.
	textPool, err := e.SearchByText(ctx, textVec, topK*2)
	if err != nil {
		return nil, fmt.Errorf("hybrid text search: %w", err)
	}
	imagePool, err := e.SearchByImage(ctx, imageVec, topK*2)
	if err != nil {
		return nil, fmt.Errorf("hybrid image search: %w", err)
	}

	fused := fusePools(textPool, imagePool, textWeight)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// fusePools unions the two candidate pools by product id and computes the
// weighted hybrid score. A product absent from one pool contributes 0 for
// that component. Output is sorted descending by hybrid score with ties
// broken by ascending slot; when a product appears in both pools its smaller
// slot is the tie-break representative.
func fusePools(textPool, imagePool []*models.SearchResult, textWeight float64) []*models.SearchResult {
	byProduct := make(map[string]*models.SearchResult, len(textPool)+len(imagePool))
	for _, r := range textPool {
		byProduct[r.Product.ProductID] = &models.SearchResult{
			Slot:          r.Slot,
			Product:       r.Product,
			TextComponent: r.Score * textWeight,
		}
	}
	for _, r := range imagePool {
		component := r.Score * (1 - textWeight)
		if fusedR, ok := byProduct[r.Product.ProductID]; ok {
			fusedR.ImageComponent = component
			if r.Slot < fusedR.Slot {
				fusedR.Slot = r.Slot
			}
		} else {
			byProduct[r.Product.ProductID] = &models.SearchResult{
				Slot:           r.Slot,
				Product:        r.Product,
				ImageComponent: component,
			}
		}
	}

	fused := make([]*models.SearchResult, 0, len(byProduct))
	for _, r := range byProduct {
		r.HybridScore = r.TextComponent + r.ImageComponent
		r.Score = r.HybridScore
		fused = append(fused, r)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].HybridScore != fused[j].HybridScore {
			return fused[i].HybridScore > fused[j].HybridScore
		}
		return fused[i].Slot < fused[j].Slot
	})
	return fused
}

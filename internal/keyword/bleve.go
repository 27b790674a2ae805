// Package keyword provides the Bleve implementation of Index.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/hyperjump/mekiki/internal/models"
)

// bleveProduct is the document shape indexed per slot.
type bleveProduct struct {
	ProductID   string `json:"product_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
	opts  SearchOptions
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a full re-index after a
// mapping change.
func NewBleveIndex(path string, opts SearchOptions) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: idx, opts: opts}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact terms in
	// product names match as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("product_id", keywordFieldMapping)
	im.AddDocumentMapping("product", docMapping)
	im.DefaultType = "product"
	im.DefaultMapping = docMapping

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: idx, opts: opts}, nil
}

// Index indexes record under its slot.
func (b *BleveIndex) Index(ctx context.Context, slot int, record *models.Product) error {
	return b.index.Index(strconv.Itoa(slot), &bleveProduct{
		ProductID:   record.ProductID,
		Title:       record.Title,
		Description: record.Description,
	})
}

// Search runs a match query over title and description and returns up to
// limit hits. When TitleBoost > 1 the title query is weighted accordingly.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	if b.opts.TitleBoost > 1 {
		titleQuery.SetBoost(b.opts.TitleBoost)
	}
	descQuery := bleve.NewMatchQuery(query)
	descQuery.SetField("description")
	combined := bleve.NewDisjunctionQuery(titleQuery, descQuery)

	req := bleve.NewSearchRequest(combined)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		slot, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, &Result{Slot: slot, Score: hit.Score})
	}
	return out, nil
}

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

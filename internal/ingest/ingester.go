package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mekiki/internal/embedding"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/keyword"
	"github.com/hyperjump/mekiki/internal/models"
)

// Ingester adds products to the engine: it encodes the image and text,
// inserts them under one slot, and indexes the keyword fields.
type Ingester struct {
	manager      *index.Manager
	embedder     embedding.Embedder
	keywordIndex keyword.Index
	logger       *zap.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets a logger for debug output (feed files, per-product inserts).
func WithLogger(l *zap.Logger) IngesterOption {
	return func(ing *Ingester) { ing.logger = l }
}

// NewIngester creates an ingester. keywordIndex may be nil to skip keyword
// indexing.
func NewIngester(manager *index.Manager, embedder embedding.Embedder, keywordIndex keyword.Index, opts ...IngesterOption) *Ingester {
	ing := &Ingester{
		manager:      manager,
		embedder:     embedder,
		keywordIndex: keywordIndex,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// AddProduct encodes input and inserts it, returning the assigned slot.
// Encoding runs before any index lock is taken; an encoding failure leaves
// the engine untouched.
func (ing *Ingester) AddProduct(ctx context.Context, input *models.ProductInput) (int, error) {
	if input.ImagePath == "" {
		return 0, fmt.Errorf("product needs an image_path")
	}
	if input.ProductID == "" {
		input.ProductID = uuid.New().String()
	}

	imageVec, err := ing.embedder.EmbedImage(ctx, input.ImagePath)
	if err != nil {
		return 0, fmt.Errorf("failed to encode image: %w", err)
	}
	textVec, err := ing.embedder.EmbedText(ctx, productText(input))
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}

	record := &models.Product{
		ProductID:   input.ProductID,
		Title:       input.Title,
		Description: input.Description,
		ImagePath:   input.ImagePath,
	}
	slot, err := ing.manager.AddProduct(ctx, record, imageVec, textVec)
	if err != nil {
		return 0, err
	}

	if ing.keywordIndex != nil {
		if err := ing.keywordIndex.Index(ctx, slot, record); err != nil {
			// The product is searchable by embedding; keyword lag is logged,
			// not fatal.
			if ing.logger != nil {
				ing.logger.Warn("keyword indexing failed", zap.Int("slot", slot), zap.Error(err))
			}
		}
	}
	if ing.logger != nil {
		ing.logger.Debug("product added",
			zap.Int("slot", slot),
			zap.String("product_id", record.ProductID),
			zap.String("title", record.Title),
		)
	}
	return slot, nil
}

// IngestFile parses a feed file and adds every product in it. It returns the
// number of products added; the first failing product aborts the rest.
func (ing *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	inputs, err := ParseFeed(path)
	if err != nil {
		return 0, err
	}
	for i, input := range inputs {
		if _, err := ing.AddProduct(ctx, input); err != nil {
			return i, fmt.Errorf("feed %s entry %d: %w", path, i+1, err)
		}
	}
	if ing.logger != nil {
		ing.logger.Info("feed ingested", zap.String("path", path), zap.Int("products", len(inputs)))
	}
	return len(inputs), nil
}

// productText builds the text to embed for a product.
func productText(input *models.ProductInput) string {
	if input.Description == "" {
		return input.Title
	}
	return strings.TrimSpace(input.Title + " " + input.Description)
}

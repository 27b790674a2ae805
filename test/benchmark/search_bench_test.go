package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/config"
	"github.com/hyperjump/mekiki/internal/embedding"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/search"
	"github.com/hyperjump/mekiki/internal/vector"
)

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, _ := vector.NewFlatIndex(512)
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(512)
	defer embedder.Close()
	for i := 0; i < 1000; i++ {
		vec, _ := embedder.EmbedText(ctx, fmt.Sprintf("product %d", i))
		_, _ = idx.Add(ctx, vec)
	}
	query, _ := embedder.EmbedText(ctx, "benchmark query")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

func BenchmarkHybridSearch(b *testing.B) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(128)
	defer embedder.Close()

	imageIdx, _ := vector.NewFlatIndex(128)
	textIdx, _ := vector.NewFlatIndex(128)
	manager, _ := index.NewManager(imageIdx, textIdx, catalog.NewStore())
	for i := 0; i < 1000; i++ {
		imgVec, _ := embedder.EmbedImage(ctx, fmt.Sprintf("images/p-%d.jpg", i))
		txtVec, _ := embedder.EmbedText(ctx, fmt.Sprintf("product %d", i))
		_, _ = manager.AddProduct(ctx, &models.Product{
			ProductID: fmt.Sprintf("p-%d", i),
			Title:     fmt.Sprintf("product %d", i),
			ImagePath: fmt.Sprintf("images/p-%d.jpg", i),
		}, imgVec, txtVec)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	engine := search.NewEngine(manager, embedder, nil, &cfg.Search)
	textVec, _ := embedder.EmbedText(ctx, "benchmark query")
	imageVec, _ := embedder.EmbedImage(ctx, "images/query.jpg")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.HybridSearch(ctx, textVec, imageVec, 10, 0.5)
	}
}

func BenchmarkMockEmbedderEmbedText(b *testing.B) {
	e := embedding.NewMockEmbedder(512)
	defer e.Close()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedText(ctx, "benchmark query text for embedding")
	}
}

package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/config"
	"github.com/hyperjump/mekiki/internal/embedding"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/ingest"
	"github.com/hyperjump/mekiki/internal/keyword"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/search"
	"github.com/hyperjump/mekiki/internal/vector"
)

const (
	e2eSearchLimit = 30
	e2eDimensions  = 16
)

type stack struct {
	engine   *search.Engine
	ingester *ingest.Ingester
	manager  *index.Manager
}

func buildStack(t *testing.T, dir string) *stack {
	t.Helper()
	embedder := embedding.NewMockEmbedder(e2eDimensions)
	t.Cleanup(func() { embedder.Close() })

	imageIdx, err := vector.NewFlatIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	textIdx, err := vector.NewFlatIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := index.NewManager(imageIdx, textIdx, catalog.NewStore())
	if err != nil {
		t.Fatal(err)
	}
	kwIdx, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"), keyword.SearchOptions{TitleBoost: 5.0})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &stack{
		engine:   search.NewEngine(manager, embedder, kwIdx, &cfg.Search),
		ingester: ingest.NewIngester(manager, embedder, kwIdx),
		manager:  manager,
	}
}

func TestE2E_SearchReturnsCorrectResults(t *testing.T) {
	dir := t.TempDir()
	s := buildStack(t, dir)
	ctx := context.Background()

	corpus := BuildCorpus()
	if corpus.TotalProducts == 0 {
		t.Fatal("corpus has no products")
	}
	if corpus.TotalQueries == 0 {
		t.Fatal("corpus has no query test cases")
	}
	for _, p := range corpus.Products {
		if _, err := s.ingester.AddProduct(ctx, p); err != nil {
			t.Fatalf("add product %q: %v", p.ProductID, err)
		}
	}

	t.Logf("indexed %d products; running %d query test cases", corpus.TotalProducts, corpus.TotalQueries)

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := s.engine.Search(ctx, &models.SearchQuery{
				Mode:      tc.Mode,
				Query:     tc.Query,
				ImagePath: tc.ImagePath,
				Limit:     e2eSearchLimit,
			})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			resultIDs := productIDsFromResponse(resp)
			if !containsAny(resultIDs, tc.ExpectedProductIDs) {
				t.Errorf("query %q: expected at least one of %v in results, got %d results (ids: %v)",
					tc.Query, tc.ExpectedProductIDs, len(resultIDs), resultIDs)
			}
		})
	}
}

func TestE2E_NoDuplicateProductsInResults(t *testing.T) {
	dir := t.TempDir()
	s := buildStack(t, dir)
	ctx := context.Background()

	// The same product id indexed twice must surface once per result list.
	for i := 0; i < 2; i++ {
		if _, err := s.ingester.AddProduct(ctx, &models.ProductInput{
			ProductID: "sku-dup",
			Title:     "Red running shoes",
			ImagePath: "images/sku-dup.jpg",
		}); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := s.engine.Search(ctx, &models.SearchQuery{
		Mode:  models.ModeText,
		Query: "Red running shoes",
		Limit: e2eSearchLimit,
	})
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		if seen[r.Product.ProductID] {
			t.Errorf("duplicate product %s in results", r.Product.ProductID)
		}
		seen[r.Product.ProductID] = true
	}
}

func TestE2E_FeedFileIngestion(t *testing.T) {
	dir := t.TempDir()
	s := buildStack(t, dir)
	ctx := context.Background()

	corpus := BuildCorpus()
	half := len(corpus.Products) / 2

	jsonlPath, err := WriteJSONLFeed(dir, "feed-a.jsonl", corpus.Products[:half])
	if err != nil {
		t.Fatal(err)
	}
	xlsxPath, err := WriteXLSXFeed(dir, "feed-b.xlsx", corpus.Products[half:])
	if err != nil {
		t.Fatal(err)
	}

	nA, err := s.ingester.IngestFile(ctx, jsonlPath)
	if err != nil {
		t.Fatal(err)
	}
	nB, err := s.ingester.IngestFile(ctx, xlsxPath)
	if err != nil {
		t.Fatal(err)
	}
	if nA+nB != corpus.TotalProducts {
		t.Fatalf("ingested %d+%d products, want %d", nA, nB, corpus.TotalProducts)
	}
	if s.manager.Size() != corpus.TotalProducts {
		t.Fatalf("catalog size: got %d, want %d", s.manager.Size(), corpus.TotalProducts)
	}

	// A product from each feed file must be findable.
	for _, p := range []*models.ProductInput{corpus.Products[0], corpus.Products[len(corpus.Products)-1]} {
		resp, err := s.engine.Search(ctx, &models.SearchQuery{
			Mode:  models.ModeImage,
			ImagePath: p.ImagePath,
			Limit: e2eSearchLimit,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !containsAny(productIDsFromResponse(resp), []string{p.ProductID}) {
			t.Errorf("product %s from feed not found by its image", p.ProductID)
		}
	}
}

func productIDsFromResponse(resp *models.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Product != nil {
			ids = append(ids, r.Product.ProductID)
		}
	}
	return ids
}

func containsAny(got []string, expected []string) bool {
	set := make(map[string]bool)
	for _, id := range got {
		set[id] = true
	}
	for _, id := range expected {
		if set[id] {
			return true
		}
	}
	return false
}

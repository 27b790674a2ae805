package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

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

func newTestServer(t *testing.T) (*Server, *ingest.Ingester) {
	t.Helper()
	dir := t.TempDir()

	embedder := embedding.NewMockEmbedder(8)
	t.Cleanup(func() { embedder.Close() })
	imageIdx, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	textIdx, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := index.NewManager(imageIdx, textIdx, catalog.NewStore())
	if err != nil {
		t.Fatal(err)
	}
	kwIdx, err := keyword.NewBleveIndex(dir+"/bleve", keyword.SearchOptions{TitleBoost: 5.0})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.SnapshotDir = dir + "/snapshots"
	cfg.Storage.KeywordIndexPath = dir + "/bleve"

	engine := search.NewEngine(manager, embedder, kwIdx, &cfg.Search)
	ingester := ingest.NewIngester(manager, embedder, kwIdx)
	srv := NewServer(engine, ingester, manager, cfg, zap.NewNop())
	return srv, ingester
}

func addTestProduct(t *testing.T, ingester *ingest.Ingester, id, title string) int {
	t.Helper()
	slot, err := ingester.AddProduct(context.Background(), &models.ProductInput{
		ProductID: id,
		Title:     title,
		ImagePath: "images/" + id + ".jpg",
	})
	if err != nil {
		t.Fatal(err)
	}
	return slot
}

func TestHandleSearch(t *testing.T) {
	srv, ingester := newTestServer(t)
	addTestProduct(t, ingester, "p-1", "red running shoes")
	addTestProduct(t, ingester, "p-2", "blue ceramic mug")

	body, _ := json.Marshal(map[string]interface{}{
		"mode":  "text",
		"query": "red running shoes",
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 {
		t.Errorf("total: got %d, want 2", out.Total)
	}
	if out.Mode != models.ModeText {
		t.Errorf("mode: got %q", out.Mode)
	}
	if len(out.Results) > 0 && out.Results[0].Rank != 1 {
		t.Errorf("first rank: got %d", out.Results[0].Rank)
	}
}

func TestHandleSearchInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleSearchMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]interface{}{"mode": "text"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400, body %s", w.Code, w.Body.String())
	}
}

func TestHandleAddProduct(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(models.ProductInput{
		ProductID: "sku-42",
		Title:     "walnut desk organizer",
		ImagePath: "images/sku-42.jpg",
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleAddProduct(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Slot      int    `json:"slot"`
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Slot != 0 {
		t.Errorf("slot: got %d, want 0", out.Slot)
	}
	if out.ProductID != "sku-42" {
		t.Errorf("product_id: got %q", out.ProductID)
	}
}

func TestHandleAddProductGeneratesID(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(models.ProductInput{
		Title:     "untagged item",
		ImagePath: "images/untagged.jpg",
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleAddProduct(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ProductID == "" {
		t.Error("expected a generated product_id")
	}
}

func TestHandleGetProduct(t *testing.T) {
	srv, ingester := newTestServer(t)
	slot := addTestProduct(t, ingester, "p-1", "red running shoes")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/products/0", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slot", "0")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	srv.handleGetProduct(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.Product
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ProductID != "p-1" {
		t.Errorf("product_id: got %q, want p-1 (slot %d)", out.ProductID, slot)
	}
}

func TestHandleGetProductNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slot", "7")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	srv.handleGetProduct(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleGetProductBadSlot(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slot", "abc")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	srv.handleGetProduct(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleSnapshotAndStatus(t *testing.T) {
	srv, ingester := newTestServer(t)
	addTestProduct(t, ingester, "p-1", "red running shoes")

	r := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", nil)
	w := httptest.NewRecorder()
	srv.handleSnapshot(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot status: got %d, body %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w = httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Products   int   `json:"products"`
		ImageCount int   `json:"image_count"`
		TextCount  int   `json:"text_count"`
		DiskBytes  int64 `json:"disk_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Products != 1 || out.ImageCount != 1 || out.TextCount != 1 {
		t.Errorf("counts: got %d/%d/%d, want 1/1/1", out.Products, out.ImageCount, out.TextCount)
	}
	if out.DiskBytes <= 0 {
		t.Errorf("disk_bytes: got %d, want > 0", out.DiskBytes)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

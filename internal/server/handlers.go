package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/search"
	"github.com/hyperjump/mekiki/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("mode", string(query.Mode)),
		zap.String("query", query.Query),
		zap.String("image_path", query.ImagePath),
		zap.Int("limit", query.Limit),
	)
	ctx, cancel := s.lockContext(r.Context())
	defer cancel()
	response, err := s.engine.Search(ctx, &query)
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidArgument):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, index.ErrBusy):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var input models.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := s.lockContext(r.Context())
	defer cancel()
	slot, err := s.ingester.AddProduct(ctx, &input)
	if err != nil {
		if errors.Is(err, index.ErrBusy) {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("add product failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"slot":       slot,
		"product_id": input.ProductID,
		"status":     "indexed",
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "slot must be an integer")
		return
	}
	record, err := s.manager.GetProduct(r.Context(), slot)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.lockContext(r.Context())
	defer cancel()
	if err := storage.Save(ctx, s.manager, s.config.Storage.SnapshotDir); err != nil {
		if errors.Is(err, index.ErrBusy) {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("snapshot failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("snapshot saved", zap.String("dir", s.config.Storage.SnapshotDir))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.SnapshotDir, s.config.Storage.KeywordIndexPath)
	if err != nil {
		s.logger.Error("status: disk usage failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products":    s.manager.Size(),
		"image_count": s.manager.ImageCount(),
		"text_count":  s.manager.TextCount(),
		"disk_bytes":  diskBytes,
		"config": map[string]interface{}{
			"embedding_kind":       s.config.Embedding.Kind,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"default_text_weight":  s.config.Search.DefaultTextWeight,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

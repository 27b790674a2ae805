// Package server provides the HTTP API for Mekiki.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/mekiki/internal/config"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/ingest"
	"github.com/hyperjump/mekiki/internal/search"
)

// Server is the HTTP server for the Mekiki API.
type Server struct {
	engine   *search.Engine
	ingester *ingest.Ingester
	manager  *index.Manager
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	ingester *ingest.Ingester,
	manager *index.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		ingester: ingester,
		manager:  manager,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/products", s.handleAddProduct)
	r.Get("/api/v1/products/{slot}", s.handleGetProduct)
	r.Post("/api/v1/snapshot", s.handleSnapshot)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// lockContext bounds index lock acquisition so a slow bulk writer surfaces as
// a retryable busy error instead of stalling query traffic.
func (s *Server) lockContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.config.Search.LockTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}

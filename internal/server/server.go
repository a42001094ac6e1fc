// Package server provides the HTTP API for Shiraberu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/collections"
	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/pipeline"
	"github.com/hyperjump/shiraberu/internal/querygen"
	"github.com/hyperjump/shiraberu/internal/websearch"
)

// Server is the HTTP server for the Shiraberu API.
type Server struct {
	pipeline  *pipeline.Pipeline
	registry  *collections.Registry
	generator *querygen.Generator
	filter    *websearch.DomainFilter
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time

	configMu sync.RWMutex
	config   *config.Config
}

// NewServer creates a server with the given dependencies.
func NewServer(
	p *pipeline.Pipeline,
	registry *collections.Registry,
	generator *querygen.Generator,
	filter *websearch.DomainFilter,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  p,
		registry:  registry,
		generator: generator,
		filter:    filter,
		config:    cfg,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Post("/api/v1/generate-queries", s.handleGenerateQueries)
	r.Post("/api/v1/ground", s.handleGround)
	r.Get("/api/v1/collections", s.handleListCollections)
	r.Delete("/api/v1/collections/{name}", s.handleDeleteCollection)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.configMu.RLock()
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.configMu.RUnlock()

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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

// ApplyConfig installs a reloaded config. Only runtime-safe settings take
// effect: the domain filter swaps immediately, listen address and storage
// paths keep their boot-time values.
func (s *Server) ApplyConfig(cfg *config.Config) {
	if s.filter != nil {
		s.filter.Update(cfg.Search.AllowedDomains, cfg.Search.BlockedDomains)
	}
	s.configMu.Lock()
	s.config = cfg
	s.configMu.Unlock()
	s.logger.Info("applied reloaded config",
		zap.Int("allowed_domains", len(cfg.Search.AllowedDomains)),
		zap.Int("blocked_domains", len(cfg.Search.BlockedDomains)))
}

// Package server provides the HTTP API for roomfinder.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/config"
	"github.com/hyperjump/roomfinder/internal/embedding"
	"github.com/hyperjump/roomfinder/internal/endpoint"
	"github.com/hyperjump/roomfinder/internal/indexer"
	"github.com/hyperjump/roomfinder/internal/search"
	"github.com/hyperjump/roomfinder/internal/storage"
)

// ModelStatus reports the local model lifecycle; *embedding.Service implements it.
type ModelStatus interface {
	State() embedding.State
	Loads() int64
	LastError() error
}

// Server is the HTTP server for the roomfinder API.
type Server struct {
	gateway  *search.Gateway
	indexer  *indexer.Indexer
	storage  storage.Storage
	endpoint *endpoint.Endpoint
	model    ModelStatus
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithEndpoint mounts the embedding function endpoint.
func WithEndpoint(e *endpoint.Endpoint) Option {
	return func(s *Server) { s.endpoint = e }
}

// WithModelStatus exposes the local model state on /api/v1/status.
func WithModelStatus(m ModelStatus) Option {
	return func(s *Server) { s.model = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	gateway *search.Gateway,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		gateway: gateway,
		indexer: idx,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the instrumented HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	if s.endpoint != nil {
		r.Post(embedding.EmbedderPath, s.handleEmbed)
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/rooms", s.handleListRooms)
		r.Post("/rooms", s.handleUpsertRoom)
		r.Get("/rooms/{id}", s.handleGetRoom)
		r.Delete("/rooms/{id}", s.handleDeleteRoom)
		r.Post("/reindex", s.handleReindex)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)

	return otelhttp.NewHandler(r, "roomfinder")
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("embedder_endpoint", s.endpoint != nil))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Package api exposes the HTTP surface of the analysis service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-identity/shikra/internal/domain"
	"github.com/opensource-identity/shikra/internal/engine"
	"github.com/opensource-identity/shikra/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, policies *policy.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, policies, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Dataset management
	router.Post("/records", handler.IngestRecords)
	router.Get("/records", handler.ListRecords)
	router.Delete("/records", handler.DeleteRecords)

	// Analysis runs
	router.Post("/runs", handler.StartRun)
	router.Get("/runs", handler.ListRuns)
	router.Get("/runs/{id}", handler.GetRun)
	router.Get("/runs/{id}/benford", handler.GetRunBenford)
	router.Get("/runs/{id}/anomalies", handler.GetRunAnomalies)
	router.Get("/runs/{id}/suspects", handler.GetRunSuspects)

	// Alert rule management
	router.Get("/alerts", handler.ListAlertRules)
	router.Post("/alerts", handler.CreateAlertRule)
	router.Delete("/alerts/{id}", handler.DeleteAlertRule)
	router.Post("/alerts/reload", handler.ReloadAlertRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

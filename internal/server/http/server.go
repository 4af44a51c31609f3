// Package httpserver provides the JSON admin API of the NCBI query service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/ncbi-query-service/internal/database"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

// Pipeline runs the bulk admin actions. *pipeline.Service satisfies it.
type Pipeline interface {
	ExecuteQueries(ctx context.Context, ids []uuid.UUID) ([]pipeline.QueryOutcome, error)
	RetrievePapers(ctx context.Context, ids []uuid.UUID) ([]pipeline.PaperOutcome, error)
}

// HarvestStarter starts durable harvest workflows.
type HarvestStarter interface {
	StartHarvest(ctx context.Context, queryID uuid.UUID) (workflowID, runID string, err error)
}

// HealthChecker reports database health. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP admin API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	repos      repository.Repositories
	pipeline   Pipeline
	harvester  HarvestStarter
	health     HealthChecker
	metrics    *observability.Metrics
	validate   *validator.Validate
	userHeader string
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// UserHeader carries the caller identity set by a trusted proxy.
	UserHeader string
}

// Deps are the collaborators of the server. Harvester and Metrics may be nil.
type Deps struct {
	Repos     repository.Repositories
	Pipeline  Pipeline
	Harvester HarvestStarter
	Health    HealthChecker
	Metrics   *observability.Metrics
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	userHeader := cfg.UserHeader
	if userHeader == "" {
		userHeader = "X-Remote-User"
	}

	s := &Server{
		repos:      deps.Repos,
		pipeline:   deps.Pipeline,
		harvester:  deps.Harvester,
		health:     deps.Health,
		metrics:    deps.Metrics,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		userHeader: userHeader,
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestContextMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/queries", func(r chi.Router) {
			r.Get("/", s.listQueries)
			r.With(s.requireUser).Post("/", s.createQuery)
			r.Get("/choices", s.listQueryChoices)
			r.With(s.requireUser).Post("/actions/execute", s.executeQueries)
			r.Get("/{queryID}", s.getQuery)
			r.Get("/{queryID}/results", s.listQueryResults)
			r.With(s.requireUser).Post("/{queryID}/harvest", s.startHarvest)
		})

		r.Route("/papers", func(r chi.Router) {
			r.Get("/", s.listPapers)
			r.With(s.requireUser).Post("/actions/retrieve", s.retrievePapers)
			r.Get("/{paperID}", s.getPaper)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the database is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	harvest := "disabled"
	if s.harvester != nil {
		harvest = "enabled"
	}

	health := s.health.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": health.Status,
		"harvest":  harvest,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

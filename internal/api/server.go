package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/mathreel/internal/config"
	"github.com/dgallion1/mathreel/internal/pipeline"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for mathreel.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	stats        *render.Registry
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, stats *render.Registry, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		r.Use(RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

		r.Post("/api/jobs", s.handleCreateJob)
		r.Route("/api/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Post("/cancel", s.handleCancelJob)
			r.Get("/artifacts", s.handleListArtifacts)
			r.Get("/artifacts/*", s.handleGetArtifact)
		})
		r.Get("/api/stats/adapters", s.handleAdapterStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

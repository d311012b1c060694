package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/hl7gest/internal/ack"
	"github.com/dgallion1/hl7gest/internal/config"
	"github.com/dgallion1/hl7gest/internal/lint"
	"github.com/dgallion1/hl7gest/internal/metrics"
	"github.com/dgallion1/hl7gest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for hl7gest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	linter       *lint.Linter
	acks         *ack.Generator
	metrics      *metrics.Metrics
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. A nil linter falls
// back to the built-in rules.
func NewServer(orch *pipeline.Orchestrator, linter *lint.Linter, m *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	if linter == nil {
		linter = lint.Builtin()
	}
	s := &Server{
		orchestrator: orch,
		linter:       linter,
		acks:         ack.NewGenerator(),
		metrics:      m,
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
	r.Use(Instrument(s.metrics))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/parse", s.handleParse)
		r.Post("/api/query", s.handleQuery)
		r.Post("/api/json", s.handleJSON)
		r.Post("/api/lint", s.handleLint)
		r.Post("/api/ack", s.handleAck)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/parse", s.handleParseStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

// Package api serves compression jobs and archived reports over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/llm"
	"github.com/dgallion1/docpress/internal/pathstore"
	"github.com/dgallion1/docpress/internal/pipeline"
)

// Options are the server's optional collaborators.
type Options struct {
	// Claude enables abstractive strategy overrides and LLM stats.
	Claude *llm.ClaudeClient
	// Exporter, when set, is also cleaned up on report deletion.
	Exporter *pathstore.Exporter
	// Metrics is served at /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// Server is the HTTP API server for docpress.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	opts         Options
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, opts Options, log *slog.Logger, cfg config.Config) *Server {
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	s := &Server{
		orchestrator: orch,
		opts:         opts,
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
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Server.APIKey, s.log))

		r.Post("/api/compress", s.handleCompress)
		r.Post("/api/compress/batch", s.handleBatchCompress)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/report", s.handleJobReport)
		r.Get("/api/jobs/{jobID}/critical-facts", s.handleJobCriticalFacts)

		r.Get("/api/reports", s.handleListReports)
		r.Get("/api/reports/{reportID}", s.handleGetReport)
		r.Get("/api/reports/{reportID}/critical-facts", s.handleReportCriticalFacts)
		r.Delete("/api/reports/{reportID}", s.handleDeleteReport)

		r.Get("/api/schema/report", s.handleReportSchema)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

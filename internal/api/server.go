package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/config"
	"github.com/dgallion1/markforest/internal/metrics"
	"github.com/dgallion1/markforest/internal/parser"
	"github.com/dgallion1/markforest/internal/pipeline"
)

// Server is the HTTP API server for markforest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	analyzer     *analysis.Analyzer
	ids          *idRegistry
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, analyzer *analysis.Analyzer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		analyzer:     analyzer.WithSource("api"),
		ids:          newIDRegistry(cfg.IDCacheTTL),
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
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Authenticated endpoints.
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/text", s.handleAnalyzeText)
		r.Post("/analyze/batch", s.handleAnalyzeBatch)

		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/jobs/{jobID}/result", s.handleJobResult)

		r.Post("/ids/next", s.handleNextID)
		r.Delete("/ids/{docID}", s.handleInvalidateIDs)

		r.Get("/stats/analysis", s.handleAnalysisStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) parserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext}
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docxref/internal/config"
	"github.com/dgallion1/docxref/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docxref.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
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

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.XrefAPIKey, s.log))

		r.Post("/api/builds", s.handleCreateBuild)
		r.Get("/api/builds/{buildID}/status", s.handleBuildStatus)
		r.Get("/api/builds/{buildID}/document", s.handleBuildDocument)
		r.Get("/api/builds/{buildID}/links", s.handleBuildLinks)
		r.Get("/api/builds/{buildID}/registry", s.handleBuildRegistry)
		r.Post("/api/builds/{buildID}/typeset", s.handleTypeset)
		r.Delete("/api/builds/{buildID}", s.handleDeleteBuild)
		r.Get("/api/stats/builds", s.handleBuildStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/projpack/internal/config"
	"github.com/dgallion1/projpack/internal/fetch"
	"github.com/dgallion1/projpack/internal/pipeline"
)

// Server is the HTTP API server for projpack.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	fetcher      *fetch.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, fetcher *fetch.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		fetcher:      fetcher,
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

		r.Post("/api/packs", s.handleSubmitPack)
		r.Post("/api/packs/batch", s.handleBatchPack)
		r.Get("/api/packs", s.handleListPacks)
		r.Get("/api/packs/{jobID}/status", s.handlePackStatus)
		r.Get("/api/packs/{jobID}/archive", s.handlePackArchive)
		r.Get("/api/packs/{jobID}/report", s.handlePackReport)
		r.Delete("/api/packs/{jobID}", s.handleDeletePack)

		r.Get("/api/stats/fetch", s.handleFetchStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

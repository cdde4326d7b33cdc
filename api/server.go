// Package api serves filing processing, ingestion and retrieval over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/filingrag"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	system *filingrag.System
	log    *slog.Logger
}

// NewServer creates and configures the HTTP server. A nil logger uses
// slog.Default().
func NewServer(system *filingrag.System, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		system: system,
		log:    log,
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

	r.Route("/api", func(r chi.Router) {
		r.Post("/filings/{symbol}", s.handleProcess)
		r.Post("/ingest", s.handleIngest)
		r.Get("/retrieve", s.handleRetrieve)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/stats", s.handleStats)
		r.Delete("/collections/{name}", s.handleDeleteCollection)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

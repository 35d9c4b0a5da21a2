package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/config"
	"rag-backend/internal/fill"
	"rag-backend/internal/models"
	"rag-backend/internal/rag"
	"rag-backend/internal/session"
)

type Asker interface {
	Ask(ctx context.Context, req rag.Request) (*models.PromptResponse, error)
}

type Ingester interface {
	IngestFile(ctx context.Context, path, filename string) (int, error)
}

type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

type Filler interface {
	ReconstructFile(ctx context.Context, path, format string) (string, fill.Report, error)
}

// Deps are the collaborators the HTTP layer forwards to.
type Deps struct {
	Asker    Asker
	Ingester Ingester
	Sources  SourceLister
	Filler   Filler
	Sessions *session.Manager
}

// Server is the HTTP API for question answering, ingestion and missing-value filling.
type Server struct {
	router     chi.Router
	deps       Deps
	cfg        config.ServerConfig
	fillFormat string
}

func NewServer(deps Deps, cfg *config.Config) *Server {
	if deps.Sessions == nil {
		deps.Sessions = session.New(cfg.Server.SessionLifetime)
	}
	s := &Server{
		deps:       deps,
		cfg:        cfg.Server,
		fillFormat: cfg.Fill.OutputFormat,
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
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(s.deps.Sessions.LoadAndSave)

	r.Get("/health", s.handleHealth)

	r.Post("/embed", s.handleEmbed)
	r.Post("/upload", s.handleEmbed)
	r.Get("/list_pdfs", s.handleListSources)

	r.Post("/ask", s.handleAsk)
	r.Get("/chat_history", s.handleChatHistory)
	r.Post("/clear_session", s.handleClearSession)

	r.Post("/fill_missing", s.handleFillMissing)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

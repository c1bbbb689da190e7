package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/queue"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Enqueuer submits highlight requests for asynchronous resolution.
type Enqueuer interface {
	Enqueue(ctx context.Context, p queue.ResolvePayload) (string, error)
}

// SharedCache is a cache shared between replicas that must be cleared on evict.
type SharedCache interface {
	InvalidateBlocks(ctx context.Context, orgID, docID string) error
}

// Config holds server dependencies. Enqueuer and SharedCache are optional.
type Config struct {
	Engine      *highlight.Engine
	Enqueuer    Enqueuer
	SharedCache SharedCache
	APIKey      string
}

// Server is the HTTP API of the highlight worker.
type Server struct {
	router   chi.Router
	engine   *highlight.Engine
	enqueuer Enqueuer
	shared   SharedCache
	apiKey   string
	log      *logging.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg Config) *Server {
	s := &Server{
		engine:   cfg.Engine,
		enqueuer: cfg.Enqueuer,
		shared:   cfg.SharedCache,
		apiKey:   cfg.APIKey,
		log:      logging.NewLogger("API"),
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
		r.Use(AuthMiddleware(s.apiKey))

		r.Route("/api/organizations/{orgID}/documents/{docID}", func(r chi.Router) {
			r.Post("/ocr", s.handleWarm)
			r.Get("/ocr/blocks", s.handleListBlocks)
			r.Delete("/ocr", s.handleEvict)
			r.Post("/highlights", s.handleResolve)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"cachedDocuments": s.engine.Cache().Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

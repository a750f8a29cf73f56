// Package server exposes the review engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rcliao/memos-daily-review/internal/engine"
	"github.com/rcliao/memos-daily-review/internal/model"
)

// Server is the review HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	logger  *slog.Logger
	version string
	started time.Time
}

// New creates a Server for e.
func New(e *engine.Engine, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:  e,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/deck", s.handleGetDeck)
		r.Post("/deck/shuffle", s.handleShuffle)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Post("/memos/{id}/viewed", s.handleViewed)
		r.Put("/memos/{id}", s.handleMemoEdited)
		r.Delete("/memos/{id}", s.handleMemoDeleted)

		r.Post("/pool/refresh", s.handleRefreshPool)
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"today":   s.engine.Today(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err as {error, category}. Engine failures carry the
// category's user message, never the transport text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":    err.Error(),
			"category": "invalid",
		})
		return
	}

	cat := model.CategoryOf(err)
	status := http.StatusInternalServerError
	switch cat {
	case model.CategoryNetwork:
		status = http.StatusServiceUnavailable
	case model.CategoryServer:
		status = http.StatusBadGateway
	case model.CategoryPermission:
		status = http.StatusUnauthorized
		if errors.Is(err, model.ErrForbidden) {
			status = http.StatusForbidden
		}
	case model.CategoryNotFound:
		status = http.StatusNotFound
	}
	s.logger.Warn("request failed", "category", cat, "error", err)
	writeJSON(w, status, map[string]string{
		"error":    model.UserMessage(cat),
		"category": string(cat),
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "category": "invalid"})
}

// Package http exposes the session control API.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"heart-sound-session-service/internal/app"
	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/models"
	"heart-sound-session-service/internal/observability"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/session"
)

// Sessions is the session lifecycle surface used by the API.
type Sessions interface {
	Open() (*session.Session, error)
	Current() (*session.Session, error)
	Cancel() (session.Snapshot, error)
	Retry() (session.Snapshot, error)
}

// Reports looks up finished session reports.
type Reports interface {
	Get(ctx context.Context, sessionID string) (models.SessionReport, error)
}

// Backend reports analysis backend health.
type Backend interface {
	CheckBackend(ctx context.Context) bool
	BackendReady() bool
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	return newRouter(application.Sessions, application.Reports, application, application.Metrics)
}

func newRouter(sessions Sessions, reports Reports, backend Backend, m *metrics.Metrics) http.Handler {
	h := &handler{sessions: sessions, reports: reports, backend: backend}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(m))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !backend.BackendReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("backend unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.openSession)
		r.Get("/sessions/current", h.currentSession)
		r.Delete("/sessions/current", h.cancelSession)
		r.Post("/sessions/current/retry", h.retrySession)
		r.Get("/reports/{sessionId}", h.getReport)
		r.Get("/backend/health", h.backendHealth)
	})

	return r
}

type handler struct {
	sessions Sessions
	reports  Reports
	backend  Backend
}

func (h *handler) openSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Open()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *handler) currentSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handler) cancelSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) retrySession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Retry()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getReport serves the most recent session from memory and older ones from the cache.
func (h *handler) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	if s, err := h.sessions.Current(); err == nil && s.ID() == id {
		if snap := s.Snapshot(); snap.Closed {
			writeJSON(w, http.StatusOK, session.Report(snap))
			return
		}
		writeError(w, apperr.E(apperr.CodeInvalidState, "http.getReport", "session is still in progress", nil))
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) backendHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"healthy": h.backend.CheckBackend(r.Context())})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: apperr.MessageOf(err), Code: string(apperr.CodeOf(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/events"
	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/repository"
	"github.com/parley-ai/parley/pkg/logger"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	sessions *repository.SessionRepository
	events   *events.Publisher // nil when event publishing is disabled
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *repository.SessionRepository, publisher *events.Publisher, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		events:   publisher,
		logger:   log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)

	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.CreateSession(ctx, ownerID, req.Title)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	if h.events != nil {
		if err := h.events.Publish(ctx, &events.Event{
			SessionID: session.ID,
			Type:      events.TypeSessionCreated,
			Metadata:  map[string]any{"owner_id": ownerID},
		}); err != nil {
			h.logger.Warn("event publish failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, session)
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)

	limit := parseIntQuery(r, "limit", 20, 1, 100)
	offset := parseIntQuery(r, "offset", 0, 0, 1<<30)

	sessions, total, err := h.sessions.ListSessions(ctx, ownerID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListSessionsResponse{
		Sessions: sessions,
		Total:    total,
		HasMore:  offset+len(sessions) < total,
	})
}

// Update handles PATCH /api/v1/sessions/{id}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req model.UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.sessions.UpdateSession(ctx, session.ID, req.Title, req.Metadata)
	if err != nil {
		h.logger.Error("failed to update session", zap.Error(err), zap.String("session_id", session.ID))
		writeDomainError(w, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	session, err = h.sessions.GetSession(ctx, session.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	deleted, err := h.sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		h.logger.Error("failed to delete session", zap.Error(err), zap.String("session_id", session.ID))
		writeDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedSession loads the session from the id URL parameter and verifies it
// belongs to the caller, writing the error response when it does not.
func (h *SessionHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	sessionID := chi.URLParam(r, "id")

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if session.OwnerID != middleware.GetOwnerID(r.Context()) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

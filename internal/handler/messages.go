package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/chat"
	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/repository"
	"github.com/parley-ai/parley/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	sessions *repository.SessionRepository
	chat     *chat.Service
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	sessions *repository.SessionRepository,
	chatService *chat.Service,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		sessions: sessions,
		chat:     chatService,
		logger:   log,
	}
}

// List handles GET /api/v1/sessions/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	limit := parseIntQuery(r, "limit", 50, 1, 500)
	offset := parseIntQuery(r, "offset", 0, 0, 1<<30)

	messages, err := h.sessions.GetMessages(ctx, session.ID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err), zap.String("session_id", session.ID))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		Messages: messages,
		Total:    session.MessageCount,
	})
}

// Append handles POST /api/v1/sessions/{id}/messages
//
// This records a message verbatim without invoking a model adapter. Clients
// use it to import history or inject system messages.
func (h *MessageHandler) Append(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req model.AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.sessions.AppendMessage(ctx, session.ID, req.Role, req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// Clear handles DELETE /api/v1/sessions/{id}/messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	cleared, err := h.sessions.ClearMessages(ctx, session.ID)
	if err != nil {
		h.logger.Error("failed to clear messages", zap.Error(err), zap.String("session_id", session.ID))
		writeDomainError(w, err)
		return
	}
	if !cleared {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Exchange handles POST /api/v1/sessions/{id}/exchange
//
// This is the full conversation turn: the user message is stored, and the
// configured model adapter produces the assistant reply.
func (h *MessageHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req model.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chat.Exchange(ctx, session.ID, req.Content)
	if err != nil {
		h.logger.Error("exchange failed", zap.Error(err), zap.String("session_id", session.ID))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *MessageHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
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

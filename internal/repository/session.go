// Package repository implements the session/message domain layer on top of
// the document store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/docstore"
	"github.com/parley-ai/parley/internal/errs"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// Collection names used by the repository.
const (
	CollectionSessions = "sessions"
	CollectionMessages = "messages"
)

// SessionRepository owns the mapping from session and message ids to their
// records. It enforces the session invariants; the store underneath does not
// interpret field semantics.
type SessionRepository struct {
	store    *docstore.Store
	defaults model.ModelConfig
	log      *logger.Logger

	// sessionMu serializes every session read-modify-write cycle. Both
	// AppendMessage (message insert plus counter update) and UpdateSession
	// (title/metadata merge) write the session back as a full replace, so
	// an unserialized writer would overwrite the other's fields with a
	// stale snapshot and message_count would lose increments.
	sessionMu sync.Mutex
}

// NewSessionRepository creates a repository over the given store. defaults
// is the model configuration stamped onto new sessions.
func NewSessionRepository(store *docstore.Store, defaults model.ModelConfig, log *logger.Logger) *SessionRepository {
	return &SessionRepository{
		store:    store,
		defaults: defaults,
		log:      log,
	}
}

// CreateSession creates a new active session for ownerID.
func (r *SessionRepository) CreateSession(ctx context.Context, ownerID, title string) (*model.Session, error) {
	const op = "repository.CreateSession"

	if strings.TrimSpace(ownerID) == "" {
		return nil, errs.Validation(op, "owner id must not be empty")
	}
	if title == "" {
		title = "New conversation"
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:          uuid.Must(uuid.NewV7()).String(),
		OwnerID:     ownerID,
		Title:       title,
		Status:      model.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		ModelConfig: r.defaults,
	}

	doc, err := toDocument(session)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	if _, err := r.store.Store(ctx, CollectionSessions, doc, session.ID); err != nil {
		return nil, err
	}

	metrics.SessionsTotal.Inc()
	r.log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("owner_id", ownerID),
	)
	return session, nil
}

// GetSession retrieves a session by id. Returns a not-found error when it
// does not exist.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	doc, err := r.store.Retrieve(ctx, CollectionSessions, id)
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := fromDocument(doc, &session); err != nil {
		return nil, errs.Storage("repository.GetSession", err)
	}
	return &session, nil
}

// UpdateSession merges a new title and metadata into the session and bumps
// updated_at. Returns false when the session does not exist.
func (r *SessionRepository) UpdateSession(ctx context.Context, id, title string, metadata map[string]any) (bool, error) {
	r.sessionMu.Lock()
	defer r.sessionMu.Unlock()

	session, err := r.GetSession(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if title != "" {
		session.Title = title
	}
	if metadata != nil {
		if session.Metadata == nil {
			session.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			session.Metadata[k] = v
		}
	}
	session.UpdatedAt = time.Now().UTC()

	return r.putSession(ctx, session)
}

// DeleteSession removes a session record. Returns false when it does not
// exist. Its messages stay behind as orphaned history until compaction.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, CollectionSessions, id)
}

// ListSessions returns the owner's sessions newest-first (created_at
// descending, id tie-break) along with the total match count.
func (r *SessionRepository) ListSessions(ctx context.Context, ownerID string, limit, offset int) ([]model.Session, int, error) {
	docs, err := r.store.Query(ctx, CollectionSessions, docstore.QueryOptions{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpEq, Value: ownerID},
		},
		SortBy:     "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, 0, err
	}

	total := len(docs)
	start := offset
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	sessions := make([]model.Session, 0, end-start)
	for _, doc := range docs[start:end] {
		var session model.Session
		if err := fromDocument(doc, &session); err != nil {
			return nil, 0, errs.Storage("repository.ListSessions", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, total, nil
}

// AppendMessage creates a message and updates the owning session's counters
// as one logical step. The message's token count is a whitespace estimate,
// not an exact tokenizer result.
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID string, role model.Role, content string) (*model.Message, error) {
	const op = "repository.AppendMessage"

	if !role.Valid() {
		return nil, errs.Validation(op, fmt.Sprintf("unknown role %q", role))
	}

	r.sessionMu.Lock()
	defer r.sessionMu.Unlock()

	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:         uuid.Must(uuid.NewV7()).String(),
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		Timestamp:  now,
		TokenCount: len(strings.Fields(content)),
	}

	doc, err := toDocument(msg)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	if _, err := r.store.Store(ctx, CollectionMessages, doc, msg.ID); err != nil {
		return nil, err
	}

	session.MessageCount++
	session.TotalTokens += msg.TokenCount
	session.LastMessageAt = &now
	session.UpdatedAt = now
	if _, err := r.putSession(ctx, session); err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	return msg, nil
}

// GetMessages returns the session's messages in timestamp order, soft-deleted
// ones excluded.
func (r *SessionRepository) GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]model.Message, error) {
	docs, err := r.store.Query(ctx, CollectionMessages, docstore.QueryOptions{
		Filters: []docstore.Filter{
			{Field: "session_id", Op: docstore.OpEq, Value: sessionID},
			{Field: "is_deleted", Op: docstore.OpEq, Value: false},
		},
		SortBy: "timestamp",
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		var msg model.Message
		if err := fromDocument(doc, &msg); err != nil {
			return nil, errs.Storage("repository.GetMessages", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// ClearMessages soft-deletes every message of a session. The session's
// historical counters are untouched; only forward visibility changes.
// Returns false when the session does not exist.
func (r *SessionRepository) ClearMessages(ctx context.Context, sessionID string) (bool, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	docs, err := r.store.Query(ctx, CollectionMessages, docstore.QueryOptions{
		Filters: []docstore.Filter{
			{Field: "session_id", Op: docstore.OpEq, Value: sessionID},
			{Field: "is_deleted", Op: docstore.OpEq, Value: false},
		},
	})
	if err != nil {
		return false, err
	}

	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		tombstone := docstore.Document{"is_deleted": true}
		if _, err := r.store.Update(ctx, CollectionMessages, id, tombstone, true); err != nil {
			return false, err
		}
	}

	r.log.Info("messages cleared",
		zap.String("session_id", sessionID),
		zap.Int("count", len(docs)),
	)
	return true, nil
}

func (r *SessionRepository) putSession(ctx context.Context, session *model.Session) (bool, error) {
	doc, err := toDocument(session)
	if err != nil {
		return false, errs.Storage("repository.putSession", err)
	}
	return r.store.Update(ctx, CollectionSessions, session.ID, doc, false)
}

// toDocument converts an entity into a store document via its JSON form.
func toDocument(v any) (docstore.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// fromDocument decodes a store document back into an entity.
func fromDocument(doc docstore.Document, target any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

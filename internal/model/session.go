// Package model defines data structures for the assistant backend.
package model

import (
	"time"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusPaused   SessionStatus = "paused"
	StatusArchived SessionStatus = "archived"
	StatusDeleted  SessionStatus = "deleted"
)

// ModelConfig holds the model parameters attached to a session.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	ModelName   string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	// Timeout is the per-request deadline in seconds.
	Timeout int `json:"timeout"`
}

// DefaultModelConfig returns the model parameters for new sessions.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:    "openai",
		ModelName:   "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   2000,
		Timeout:     30,
	}
}

// Session represents a conversation thread belonging to one owner.
//
// MessageCount counts every message ever appended, soft-deleted ones
// included; it never decreases.
type Session struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Title         string         `json:"title"`
	Status        SessionStatus  `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
	MessageCount  int            `json:"message_count"`
	TotalTokens   int            `json:"total_tokens"`
	ModelConfig   ModelConfig    `json:"model_config"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CreateSessionRequest is the request to create a new session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// UpdateSessionRequest is the request to update a session.
type UpdateSessionRequest struct {
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListSessionsResponse is the response for listing sessions.
type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

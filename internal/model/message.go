package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn within a session. Messages are immutable once
// created except for the IsDeleted flag.
type Message struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	Role            Role           `json:"role"`
	Content         string         `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	TokenCount      int            `json:"token_count"`
	ParentMessageID *string        `json:"parent_message_id,omitempty"`
	IsDeleted       bool           `json:"is_deleted"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AppendMessageRequest is the request to append a message to a session.
type AppendMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

// ExchangeRequest is the request for one full conversation turn.
type ExchangeRequest struct {
	Content string `json:"content"`
}

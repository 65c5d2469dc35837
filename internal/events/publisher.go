// Package events publishes session lifecycle events to NATS. Publishing is
// best-effort: the system runs unchanged when no NATS URL is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// Type classifies a lifecycle event.
type Type string

const (
	TypeSessionCreated  Type = "session.created"
	TypeMessageAppended Type = "message.appended"
	TypeExchangeFailed  Type = "exchange.failed"
)

// Event is one lifecycle notification.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      Type           `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Config holds NATS connection configuration.
type Config struct {
	URL   string
	Token string
}

// Publisher wraps a NATS connection for event publishing.
type Publisher struct {
	conn *nats.Conn
	log  *logger.Logger
}

// Connect establishes a connection to the NATS server.
func Connect(cfg Config, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: nc, log: log}, nil
}

// Publish emits one event on the session's subject. Callers treat failures
// as advisory; persistence has already happened by the time this runs.
func (p *Publisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("parley.sessions.%s.events", event.SessionID)
	if err := p.conn.Publish(subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

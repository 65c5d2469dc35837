// Package chat orchestrates one full conversation turn: pipeline, storage,
// provider call and accounting.
package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/errs"
	"github.com/parley-ai/parley/internal/events"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/pipeline"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/repository"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// Service runs exchanges against a session.
type Service struct {
	sessions *repository.SessionRepository
	pipe     *pipeline.Pipeline
	registry *provider.Registry
	events   *events.Publisher // nil when event publishing is disabled
	log      *logger.Logger

	systemPrompt string
	maxHistory   int
}

// Params configures a chat service.
type Params struct {
	Sessions     *repository.SessionRepository
	Pipeline     *pipeline.Pipeline
	Registry     *provider.Registry
	Events       *events.Publisher
	SystemPrompt string
	MaxHistory   int
}

// NewService creates a chat service.
func NewService(p Params, log *logger.Logger) *Service {
	return &Service{
		sessions:     p.Sessions,
		pipe:         p.Pipeline,
		registry:     p.Registry,
		events:       p.Events,
		systemPrompt: p.SystemPrompt,
		maxHistory:   p.MaxHistory,
		log:          log,
	}
}

// ExchangeResult is the outcome of one conversation turn. A provider
// failure still yields a complete result whose FinishReason is "error" and
// whose assistant message carries readable text.
type ExchangeResult struct {
	UserMessage      *model.Message `json:"user_message"`
	AssistantMessage *model.Message `json:"assistant_message"`
	FinishReason     string         `json:"finish_reason"`
	Cost             pipeline.Cost  `json:"cost"`
}

// Exchange processes raw user text against a session: validate and filter,
// persist the user message, call the session's provider with the assembled
// context window, then persist and return the reply.
func (s *Service) Exchange(ctx context.Context, sessionID, raw string) (*ExchangeResult, error) {
	const op = "chat.Exchange"

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	pctx := pipeline.Context{
		SessionID:    session.ID,
		OwnerID:      session.OwnerID,
		SystemPrompt: s.systemPrompt,
	}

	processed := s.pipe.ProcessUserMessage(raw, pctx)
	if !processed.IsValid {
		return nil, errs.Validation(op, processed.Error)
	}

	// History is captured before the append so the current message appears
	// in the window exactly once, at the end.
	history, err := s.sessions.GetMessages(ctx, sessionID, 0, 0)
	if err != nil {
		return nil, err
	}
	pctx.History = history

	userMsg, err := s.sessions.AppendMessage(ctx, sessionID, model.RoleUser, processed.Content)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &events.Event{
		SessionID: sessionID,
		Type:      events.TypeMessageAppended,
		Metadata:  map[string]any{"message_id": userMsg.ID, "role": string(model.RoleUser)},
	})

	if processed.Type == pipeline.TypeCommand {
		return s.acknowledgeCommand(ctx, session, userMsg, processed)
	}

	adapter := s.registry.Get(session.ModelConfig.Provider)
	var resp *provider.Response
	if adapter == nil {
		resp = &provider.Response{
			Content:      fmt.Sprintf("No model provider named %q is available right now.", session.ModelConfig.Provider),
			Model:        session.ModelConfig.ModelName,
			FinishReason: provider.FinishError,
		}
	} else {
		window := s.pipe.PrepareContext(processed.Content, pctx, s.maxHistory)
		// The provider call runs outside every storage lock; a hung remote
		// call must not block storage for other sessions.
		resp = adapter.Generate(ctx, window, session.ModelConfig)
	}

	formatted := s.pipe.FormatResponse(resp.Content, pctx)
	assistantMsg, err := s.sessions.AppendMessage(ctx, sessionID, model.RoleAssistant, formatted)
	if err != nil {
		return nil, err
	}

	cost := s.pipe.CalculateCost(processed.Content, formatted, session.ModelConfig)

	status := "success"
	if resp.Failed() {
		status = "error"
		s.log.Warn("provider returned degraded response",
			zap.String("session_id", sessionID),
			zap.String("provider", session.ModelConfig.Provider),
			zap.String("model", resp.Model),
		)
		s.publish(ctx, &events.Event{
			SessionID: sessionID,
			Type:      events.TypeExchangeFailed,
			Reason:    resp.Content,
		})
	}
	metrics.RecordGenerate(
		session.ModelConfig.Provider,
		session.ModelConfig.ModelName,
		status,
		float64(resp.LatencyMs)/1000.0,
		cost.InputTokens,
		cost.OutputTokens,
	)
	s.publish(ctx, &events.Event{
		SessionID: sessionID,
		Type:      events.TypeMessageAppended,
		Metadata:  map[string]any{"message_id": assistantMsg.ID, "role": string(model.RoleAssistant)},
	})

	return &ExchangeResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		FinishReason:     resp.FinishReason,
		Cost:             cost,
	}, nil
}

// acknowledgeCommand short-circuits command messages without a provider
// call.
func (s *Service) acknowledgeCommand(ctx context.Context, session *model.Session, userMsg *model.Message, processed pipeline.ProcessedMessage) (*ExchangeResult, error) {
	ack := fmt.Sprintf("Command %q received.", processed.Command.Name)
	if processed.Command.Args != "" {
		ack = fmt.Sprintf("Command %q received with arguments %q.", processed.Command.Name, processed.Command.Args)
	}

	assistantMsg, err := s.sessions.AppendMessage(ctx, session.ID, model.RoleAssistant, ack)
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		FinishReason:     provider.FinishStop,
		Cost:             s.pipe.CalculateCost(processed.Content, ack, session.ModelConfig),
	}, nil
}

func (s *Service) publish(ctx context.Context, event *events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("event publish failed",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/docstore"
	"github.com/parley-ai/parley/internal/errs"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/pipeline"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/repository"
	"github.com/parley-ai/parley/pkg/logger"
)

// failingProvider always reports a remote failure as a degraded response.
type failingProvider struct{}

func (p *failingProvider) Name() string     { return "failing" }
func (p *failingProvider) Models() []string { return []string{"failing-1"} }

func (p *failingProvider) Initialize(ctx context.Context, cfg map[string]string) error {
	return nil
}

func (p *failingProvider) ValidateConfig(cfg model.ModelConfig) error { return nil }

func (p *failingProvider) Generate(ctx context.Context, messages []provider.ChatMessage, cfg model.ModelConfig) *provider.Response {
	return &provider.Response{
		Content:      "The model backend is currently unavailable: " + errors.New("connection refused").Error(),
		Model:        "failing-1",
		FinishReason: provider.FinishError,
	}
}

func (p *failingProvider) GenerateStream(ctx context.Context, messages []provider.ChatMessage, cfg model.ModelConfig, cb provider.StreamCallback) *provider.Response {
	return p.Generate(ctx, messages, cfg)
}

func newTestService(t *testing.T, p provider.Provider) (*Service, *repository.SessionRepository) {
	t.Helper()

	store, err := docstore.Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	defaults := model.DefaultModelConfig()
	defaults.Provider = p.Name()
	repo := repository.NewSessionRepository(store, defaults, logger.NewNop())

	registry := provider.NewRegistry(logger.NewNop())
	registry.Register(p.Name(), p)

	svc := NewService(Params{
		Sessions:     repo,
		Pipeline:     pipeline.New(logger.NewNop()),
		Registry:     registry,
		SystemPrompt: "You are a helpful assistant.",
		MaxHistory:   10,
	}, logger.NewNop())

	return svc, repo
}

func TestExchangeSuccess(t *testing.T) {
	svc, repo := newTestService(t, provider.NewEchoProvider())
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	result, err := svc.Exchange(ctx, session.ID, "hello world")
	require.NoError(t, err)

	assert.Equal(t, provider.FinishStop, result.FinishReason)
	assert.Equal(t, model.RoleUser, result.UserMessage.Role)
	assert.Equal(t, "hello world", result.UserMessage.Content)
	assert.Equal(t, model.RoleAssistant, result.AssistantMessage.Role)
	assert.Equal(t, "You said: hello world", result.AssistantMessage.Content)
	assert.Positive(t, result.Cost.TotalTokens)

	// Both turns were persisted and the counters track them.
	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)

	messages, err := repo.GetMessages(ctx, session.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
}

func TestExchangeProviderFailureIsDegradedNotFatal(t *testing.T) {
	svc, repo := newTestService(t, &failingProvider{})
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	result, err := svc.Exchange(ctx, session.ID, "hello")
	require.NoError(t, err)

	assert.Equal(t, provider.FinishError, result.FinishReason)
	assert.NotEmpty(t, result.AssistantMessage.Content)

	// The degraded reply is part of the durable history.
	messages, err := repo.GetMessages(ctx, session.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestExchangeUnknownProviderIsDegraded(t *testing.T) {
	ctx := context.Background()

	store, err := docstore.Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	// Sessions reference a provider nothing registered.
	defaults := model.DefaultModelConfig()
	defaults.Provider = "missing"
	repo := repository.NewSessionRepository(store, defaults, logger.NewNop())

	svc := NewService(Params{
		Sessions:   repo,
		Pipeline:   pipeline.New(logger.NewNop()),
		Registry:   provider.NewRegistry(logger.NewNop()),
		MaxHistory: 10,
	}, logger.NewNop())

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	result, err := svc.Exchange(ctx, session.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, provider.FinishError, result.FinishReason)
	assert.Contains(t, result.AssistantMessage.Content, "missing")
}

func TestExchangeValidationFailure(t *testing.T) {
	svc, repo := newTestService(t, provider.NewEchoProvider())
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	_, err = svc.Exchange(ctx, session.ID, "   ")
	assert.True(t, errs.IsValidation(err))

	// Nothing was persisted for the rejected input.
	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, got.MessageCount)
}

func TestExchangeMissingSession(t *testing.T) {
	svc, _ := newTestService(t, provider.NewEchoProvider())

	_, err := svc.Exchange(context.Background(), "missing", "hello")
	assert.True(t, errs.IsNotFound(err))
}

func TestExchangeCommandShortCircuits(t *testing.T) {
	svc, repo := newTestService(t, provider.NewEchoProvider())
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	result, err := svc.Exchange(ctx, session.ID, "/help me please")
	require.NoError(t, err)

	assert.Equal(t, provider.FinishStop, result.FinishReason)
	assert.Contains(t, result.AssistantMessage.Content, `Command "help" received`)
	assert.NotContains(t, result.AssistantMessage.Content, "You said:")
}

func TestExchangeFiltersDeniedTerms(t *testing.T) {
	svc, repo := newTestService(t, provider.NewEchoProvider())
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	result, err := svc.Exchange(ctx, session.ID, "this is spam")
	require.NoError(t, err)

	assert.Equal(t, "this is ***", result.UserMessage.Content)
	assert.NotContains(t, result.AssistantMessage.Content, "spam")
}

func TestExchangeContextWindowExcludesCurrentTurnHistory(t *testing.T) {
	// A capture provider records the window it was handed.
	capture := &windowCapture{}
	svc, repo := newTestService(t, capture)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "owner-1", "")
	require.NoError(t, err)

	_, err = repo.AppendMessage(ctx, session.ID, model.RoleUser, "earlier question")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, session.ID, model.RoleAssistant, "earlier answer")
	require.NoError(t, err)

	_, err = svc.Exchange(ctx, session.ID, "current question")
	require.NoError(t, err)

	// system prompt, two history turns, then the current message once.
	require.Len(t, capture.window, 4)
	assert.Equal(t, "system", capture.window[0].Role)
	assert.Equal(t, "earlier question", capture.window[1].Content)
	assert.Equal(t, "earlier answer", capture.window[2].Content)
	assert.Equal(t, "current question", capture.window[3].Content)
}

// windowCapture records the context window passed to Generate.
type windowCapture struct {
	window []provider.ChatMessage
}

func (p *windowCapture) Name() string     { return "capture" }
func (p *windowCapture) Models() []string { return []string{"capture-1"} }

func (p *windowCapture) Initialize(ctx context.Context, cfg map[string]string) error { return nil }

func (p *windowCapture) ValidateConfig(cfg model.ModelConfig) error { return nil }

func (p *windowCapture) Generate(ctx context.Context, messages []provider.ChatMessage, cfg model.ModelConfig) *provider.Response {
	p.window = messages
	return &provider.Response{Content: "ok", Model: "capture-1", FinishReason: provider.FinishStop}
}

func (p *windowCapture) GenerateStream(ctx context.Context, messages []provider.ChatMessage, cfg model.ModelConfig, cb provider.StreamCallback) *provider.Response {
	return p.Generate(ctx, messages, cfg)
}

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
)

// stubProvider is a minimal adapter whose Initialize outcome is scripted.
type stubProvider struct {
	name    string
	initErr error
}

func (p *stubProvider) Name() string     { return p.name }
func (p *stubProvider) Models() []string { return []string{p.name + "-1"} }

func (p *stubProvider) Initialize(ctx context.Context, cfg map[string]string) error {
	return p.initErr
}

func (p *stubProvider) ValidateConfig(cfg model.ModelConfig) error {
	return validateCommon(cfg)
}

func (p *stubProvider) Generate(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig) *Response {
	return &Response{Content: "stub reply", Model: p.name + "-1", FinishReason: FinishStop}
}

func (p *stubProvider) GenerateStream(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig, cb StreamCallback) *Response {
	return p.Generate(ctx, messages, cfg)
}

func newTestRegistry() *Registry {
	return NewRegistry(logger.NewNop())
}

func TestRegisterFirstBecomesDefault(t *testing.T) {
	r := newTestRegistry()

	assert.True(t, r.Register("alpha", &stubProvider{name: "alpha"}))
	assert.True(t, r.Register("beta", &stubProvider{name: "beta"}))
	assert.Equal(t, "alpha", r.Default())
}

func TestRegisterRejectsEmptyNameAndNil(t *testing.T) {
	r := newTestRegistry()

	assert.False(t, r.Register("", &stubProvider{name: "x"}))
	assert.False(t, r.Register("x", nil))
	assert.Empty(t, r.Default())
}

func TestRegisterOverwrites(t *testing.T) {
	r := newTestRegistry()

	first := &stubProvider{name: "alpha"}
	second := &stubProvider{name: "alpha"}
	r.Register("alpha", first)
	r.Register("alpha", second)

	assert.Same(t, Provider(second), r.Get("alpha"))
	assert.Len(t, r.List(), 1)
}

func TestGetEmptyNameReturnsDefault(t *testing.T) {
	r := newTestRegistry()

	p := &stubProvider{name: "alpha"}
	r.Register("alpha", p)

	assert.Same(t, Provider(p), r.Get(""))
	assert.Nil(t, r.Get("missing"))
}

func TestGetOnEmptyRegistry(t *testing.T) {
	r := newTestRegistry()
	assert.Nil(t, r.Get(""))
}

func TestSetDefault(t *testing.T) {
	r := newTestRegistry()

	r.Register("alpha", &stubProvider{name: "alpha"})
	r.Register("beta", &stubProvider{name: "beta"})

	assert.True(t, r.SetDefault("beta"))
	assert.Equal(t, "beta", r.Default())

	// The current default survives a failed change.
	assert.False(t, r.SetDefault("missing"))
	assert.Equal(t, "beta", r.Default())
}

func TestUnregisterReassignsDefault(t *testing.T) {
	r := newTestRegistry()

	r.Register("alpha", &stubProvider{name: "alpha"})
	r.Register("beta", &stubProvider{name: "beta"})

	assert.True(t, r.Unregister("alpha"))
	assert.Equal(t, "beta", r.Default())

	assert.True(t, r.Unregister("beta"))
	assert.Empty(t, r.Default())

	assert.False(t, r.Unregister("beta"))
}

func TestInitializeAllPartialSuccess(t *testing.T) {
	r := newTestRegistry()

	r.Register("good", &stubProvider{name: "good"})
	r.Register("bad", &stubProvider{name: "bad", initErr: errors.New("no credentials")})
	r.Register("also-good", &stubProvider{name: "also-good"})

	results := r.InitializeAll(context.Background(), nil)
	require.Len(t, results, 3)
	assert.True(t, results["good"])
	assert.False(t, results["bad"])
	assert.True(t, results["also-good"])

	// A failed initialization does not evict the provider.
	assert.NotNil(t, r.Get("bad"))
}

func TestEchoGenerate(t *testing.T) {
	p := NewEchoProvider()
	require.NoError(t, p.Initialize(context.Background(), nil))

	resp := p.Generate(context.Background(), []ChatMessage{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hello there"},
	}, model.DefaultModelConfig())

	require.NotNil(t, resp)
	assert.False(t, resp.Failed())
	assert.Equal(t, "You said: hello there", resp.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Positive(t, resp.UsageTokens)
}

func TestEchoGenerateEmptyWindow(t *testing.T) {
	p := NewEchoProvider()

	resp := p.Generate(context.Background(), nil, model.DefaultModelConfig())
	require.NotNil(t, resp)
	assert.True(t, resp.Failed())
	assert.NotEmpty(t, resp.Content)
}

func TestEchoGenerateStream(t *testing.T) {
	p := NewEchoProvider()

	var chunks []string
	resp := p.GenerateStream(context.Background(), []ChatMessage{
		{Role: "user", Content: "one two"},
	}, model.DefaultModelConfig(), func(chunk string, index int) error {
		chunks = append(chunks, chunk)
		return nil
	})

	require.NotNil(t, resp)
	assert.False(t, resp.Failed())
	assert.Len(t, chunks, 4) // "You said: one two"
}

func TestValidateCommon(t *testing.T) {
	cfg := model.DefaultModelConfig()
	assert.NoError(t, validateCommon(cfg))

	bad := cfg
	bad.Temperature = 3.5
	assert.Error(t, validateCommon(bad))

	bad = cfg
	bad.MaxTokens = 0
	assert.Error(t, validateCommon(bad))
}

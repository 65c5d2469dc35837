package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parley-ai/parley/internal/model"
)

// EchoProvider is an offline adapter that answers by reflecting the last
// user message. It keeps the system usable without credentials and backs
// the test suite.
type EchoProvider struct{}

// NewEchoProvider creates an echo adapter.
func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

// Name returns the provider name.
func (p *EchoProvider) Name() string {
	return "echo"
}

// Models returns available models.
func (p *EchoProvider) Models() []string {
	return []string{"echo-1"}
}

// Initialize is a no-op; the adapter needs no credentials and is usable
// from construction.
func (p *EchoProvider) Initialize(ctx context.Context, cfg map[string]string) error {
	return nil
}

// ValidateConfig checks the shared parameter ranges only.
func (p *EchoProvider) ValidateConfig(cfg model.ModelConfig) error {
	return validateCommon(cfg)
}

// Generate reflects the last message of the context window.
func (p *EchoProvider) Generate(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig) *Response {
	start := time.Now()

	if len(messages) == 0 {
		return errorResponse("echo-1", fmt.Errorf("empty context window"))
	}
	last := messages[len(messages)-1].Content
	content := fmt.Sprintf("You said: %s", last)

	tokens := 0
	for _, msg := range messages {
		tokens += len(strings.Fields(msg.Content))
	}
	tokens += len(strings.Fields(content))

	return &Response{
		Content:      content,
		UsageTokens:  tokens,
		Model:        "echo-1",
		FinishReason: FinishStop,
		LatencyMs:    time.Since(start).Milliseconds(),
		Metadata:     map[string]any{"provider": "echo"},
	}
}

// GenerateStream delivers the echoed reply word by word.
func (p *EchoProvider) GenerateStream(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig, cb StreamCallback) *Response {
	resp := p.Generate(ctx, messages, cfg)
	if resp.Failed() {
		return resp
	}
	for i, word := range strings.Fields(resp.Content) {
		if err := cb(word+" ", i); err != nil {
			return errorResponse("echo-1", err)
		}
	}
	return resp
}

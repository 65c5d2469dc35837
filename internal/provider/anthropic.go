package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parley-ai/parley/internal/model"
)

// AnthropicProvider adapts the Anthropic messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	apiKey string
}

// NewAnthropicParams configures an AnthropicProvider before Initialize.
type NewAnthropicParams struct {
	APIKey string
}

// NewAnthropicProvider creates an uninitialized Anthropic adapter.
func NewAnthropicProvider(params NewAnthropicParams) *AnthropicProvider {
	return &AnthropicProvider{apiKey: params.APIKey}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Models returns available models.
func (p *AnthropicProvider) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

// Initialize builds the API client. cfg may carry an api_key overriding the
// constructor value.
func (p *AnthropicProvider) Initialize(ctx context.Context, cfg map[string]string) error {
	if key := cfg["api_key"]; key != "" {
		p.apiKey = key
	}
	if p.apiKey == "" {
		return errors.New("anthropic API key is required")
	}
	p.client = anthropic.NewClient(option.WithAPIKey(p.apiKey))
	return nil
}

// ValidateConfig checks the session's model configuration.
func (p *AnthropicProvider) ValidateConfig(cfg model.ModelConfig) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	for _, m := range p.Models() {
		if m == cfg.ModelName {
			return nil
		}
	}
	return fmt.Errorf("model %q not supported by anthropic", cfg.ModelName)
}

// Generate produces a completion. Remote failures are returned as degraded
// responses, never as errors.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig) *Response {
	if p.client == nil {
		return errorResponse(cfg.ModelName, errors.New("anthropic provider not initialized"))
	}

	ctx, cancel := generateContext(ctx, cfg)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, p.buildParams(messages, cfg))
	if err != nil {
		return errorResponse(cfg.ModelName, err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &Response{
		Content:      content,
		UsageTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		Model:        resp.Model,
		FinishReason: string(resp.StopReason),
		LatencyMs:    time.Since(start).Milliseconds(),
		Metadata: map[string]any{
			"provider":      "anthropic",
			"input_tokens":  int(resp.Usage.InputTokens),
			"output_tokens": int(resp.Usage.OutputTokens),
		},
	}
}

// GenerateStream delivers the completion token by token through cb.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig, cb StreamCallback) *Response {
	if p.client == nil {
		return errorResponse(cfg.ModelName, errors.New("anthropic provider not initialized"))
	}

	ctx, cancel := generateContext(ctx, cfg)
	defer cancel()

	start := time.Now()
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(messages, cfg))

	var content string
	var tokensOut int
	var stopReason string
	index := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok && delta.Type == "text_delta" {
				token := delta.Text
				content += token
				if err := cb(token, index); err != nil {
					return errorResponse(cfg.ModelName, err)
				}
				index++
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			if delta, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
				stopReason = string(delta.StopReason)
			}
			tokensOut = int(event.Usage.OutputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return errorResponse(cfg.ModelName, err)
	}

	return &Response{
		Content:      content,
		UsageTokens:  tokensOut,
		Model:        cfg.ModelName,
		FinishReason: stopReason,
		LatencyMs:    time.Since(start).Milliseconds(),
		Metadata:     map[string]any{"provider": "anthropic"},
	}
}

func (p *AnthropicProvider) buildParams(messages []ChatMessage, cfg model.ModelConfig) anthropic.MessageNewParams {
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	// Anthropic takes the system prompt out of band.
	var system string
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		params = append(params, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		})
	}

	req := anthropic.MessageNewParams{
		Model:       anthropic.F(modelName),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Messages:    anthropic.F(params),
		Temperature: anthropic.F(cfg.Temperature),
	}
	if system != "" {
		req.System = anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(system),
			},
		})
	}
	return req
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/parley-ai/parley/internal/model"
)

// OpenAIProvider adapts the OpenAI chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
}

// NewOpenAIParams configures an OpenAIProvider before Initialize.
type NewOpenAIParams struct {
	APIKey string
}

// NewOpenAIProvider creates an uninitialized OpenAI adapter.
func NewOpenAIProvider(params NewOpenAIParams) *OpenAIProvider {
	return &OpenAIProvider{apiKey: params.APIKey}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Models returns available models.
func (p *OpenAIProvider) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
	}
}

// Initialize builds the API client. cfg may carry an api_key overriding the
// constructor value.
func (p *OpenAIProvider) Initialize(ctx context.Context, cfg map[string]string) error {
	if key := cfg["api_key"]; key != "" {
		p.apiKey = key
	}
	if p.apiKey == "" {
		return errors.New("OpenAI API key is required")
	}
	p.client = openai.NewClient(p.apiKey)
	return nil
}

// ValidateConfig checks the session's model configuration.
func (p *OpenAIProvider) ValidateConfig(cfg model.ModelConfig) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	for _, m := range p.Models() {
		if m == cfg.ModelName {
			return nil
		}
	}
	return fmt.Errorf("model %q not supported by openai", cfg.ModelName)
}

// Generate produces a completion. Remote failures are returned as degraded
// responses, never as errors.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig) *Response {
	if p.client == nil {
		return errorResponse(cfg.ModelName, errors.New("openai provider not initialized"))
	}

	ctx, cancel := generateContext(ctx, cfg)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, cfg, false))
	if err != nil {
		return errorResponse(cfg.ModelName, err)
	}

	var content, finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &Response{
		Content:      content,
		UsageTokens:  resp.Usage.TotalTokens,
		Model:        resp.Model,
		FinishReason: finishReason,
		LatencyMs:    time.Since(start).Milliseconds(),
		Metadata: map[string]any{
			"provider":      "openai",
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
		},
	}
}

// GenerateStream delivers the completion token by token through cb.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig, cb StreamCallback) *Response {
	if p.client == nil {
		return errorResponse(cfg.ModelName, errors.New("openai provider not initialized"))
	}

	ctx, cancel := generateContext(ctx, cfg)
	defer cancel()

	start := time.Now()
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(messages, cfg, true))
	if err != nil {
		return errorResponse(cfg.ModelName, err)
	}
	defer stream.Close()

	var content, finishReason string
	index := 0

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errorResponse(cfg.ModelName, err)
		}

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				content += delta
				if err := cb(delta, index); err != nil {
					return errorResponse(cfg.ModelName, err)
				}
				index++
			}
			if chunk.Choices[0].FinishReason != "" {
				finishReason = string(chunk.Choices[0].FinishReason)
			}
		}
	}

	return &Response{
		Content: content,
		// The streaming API reports no usage; estimate from length.
		UsageTokens:  len(content) / 4,
		Model:        cfg.ModelName,
		FinishReason: finishReason,
		LatencyMs:    time.Since(start).Milliseconds(),
		Metadata:     map[string]any{"provider": "openai"},
	}
}

func (p *OpenAIProvider) buildRequest(messages []ChatMessage, cfg model.ModelConfig, stream bool) openai.ChatCompletionRequest {
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gpt-4o"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		converted[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    converted,
		MaxTokens:   maxTokens,
		Temperature: float32(cfg.Temperature),
		Stream:      stream,
	}
}

// Package provider defines the model-backend adapter contract and the
// registry that selects between adapters.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/parley-ai/parley/internal/model"
)

// ChatMessage is one entry of the context window sent to a model backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Finish reasons reported in a Response.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// Response is the result of a generation call. A remote failure is reported
// through FinishReason "error" with a human-readable Content, never through
// a returned error, so callers can always produce user-facing text.
type Response struct {
	Content      string         `json:"content"`
	UsageTokens  int            `json:"usage_tokens"`
	Model        string         `json:"model"`
	FinishReason string         `json:"finish_reason"`
	LatencyMs    int64          `json:"latency_ms"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Failed reports whether the response carries a degraded error result.
func (r *Response) Failed() bool {
	return r.FinishReason == FinishError
}

// StreamCallback is called for each token during streaming generation.
type StreamCallback func(token string, index int) error

// Provider is the adapter contract for a model backend.
type Provider interface {
	// Name returns the provider name used for registry lookup.
	Name() string

	// Models returns the models this provider can serve.
	Models() []string

	// Initialize prepares the adapter from a flat config map (api_key and
	// friends). An error leaves the adapter unusable but never aborts the
	// initialization of other providers.
	Initialize(ctx context.Context, cfg map[string]string) error

	// ValidateConfig checks a session's model configuration against this
	// provider's limits.
	ValidateConfig(cfg model.ModelConfig) error

	// Generate produces a completion for the given context window.
	Generate(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig) *Response

	// GenerateStream is the streaming extension point. Implementations
	// deliver tokens through cb and return the final response.
	GenerateStream(ctx context.Context, messages []ChatMessage, cfg model.ModelConfig, cb StreamCallback) *Response
}

// errorResponse normalizes a remote failure into a degraded-but-valid
// response.
func errorResponse(modelName string, err error) *Response {
	return &Response{
		Content:      fmt.Sprintf("The model backend is currently unavailable: %v", err),
		Model:        modelName,
		FinishReason: FinishError,
		Metadata:     map[string]any{"error": err.Error()},
	}
}

// generateContext applies the per-request timeout from the session's model
// configuration.
func generateContext(ctx context.Context, cfg model.ModelConfig) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
}

// validateCommon checks the parameter ranges shared by all providers.
func validateCommon(cfg model.ModelConfig) error {
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", cfg.Temperature)
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", cfg.MaxTokens)
	}
	return nil
}

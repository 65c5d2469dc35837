// Package pipeline validates, classifies and filters conversation text and
// assembles model-ready context windows. It is the only place that
// interprets raw text semantically.
package pipeline

import (
	"strings"

	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/pkg/logger"
)

// MessageType classifies processed user input.
type MessageType string

const (
	TypeText    MessageType = "text"
	TypeCommand MessageType = "command"
)

// CommandPrefix marks a message as a command.
const CommandPrefix = "/"

// maskToken replaces denied terms. It must never itself contain a denied
// term, or filtering would stop being idempotent.
const maskToken = "***"

// Command is a parsed command message.
type Command struct {
	Name string `json:"name"`
	Args string `json:"args"`
}

// ProcessedMessage is the result of processing raw user input. Validation
// failures are data, not errors: IsValid is false and Error explains why.
type ProcessedMessage struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
	Command *Command    `json:"command,omitempty"`
	IsValid bool        `json:"is_valid"`
	Error   string      `json:"error,omitempty"`
}

// Context carries the conversation state a message is processed against.
type Context struct {
	SessionID    string
	OwnerID      string
	History      []model.Message
	SystemPrompt string
}

// Cost is a whitespace-token approximation of an exchange's cost. The
// counts are estimates, not tokenizer ground truth.
type Cost struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

const costPerToken = 0.0001

// Pipeline processes user input and model output.
type Pipeline struct {
	denylist []string
	log      *logger.Logger
}

// New creates a pipeline with the default content denylist.
func New(log *logger.Logger) *Pipeline {
	return &Pipeline{
		denylist: []string{"spam", "malicious", "inappropriate"},
		log:      log,
	}
}

// ProcessUserMessage trims, validates, classifies and filters raw input.
// Empty or whitespace-only input yields an invalid result.
func (p *Pipeline) ProcessUserMessage(raw string, pctx Context) ProcessedMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ProcessedMessage{
			Type:    TypeText,
			IsValid: false,
			Error:   "message content must not be empty",
		}
	}

	filtered := p.ApplyContentFilters(trimmed)

	if strings.HasPrefix(trimmed, CommandPrefix) {
		return ProcessedMessage{
			Content: filtered,
			Type:    TypeCommand,
			Command: parseCommand(trimmed),
			IsValid: true,
		}
	}

	return ProcessedMessage{
		Content: filtered,
		Type:    TypeText,
		IsValid: true,
	}
}

// FormatResponse applies the content filter to model output.
func (p *Pipeline) FormatResponse(raw string, pctx Context) string {
	return p.ApplyContentFilters(strings.TrimSpace(raw))
}

// ApplyContentFilters masks every denied term. Filtering already-filtered
// text is a no-op.
func (p *Pipeline) ApplyContentFilters(text string) string {
	if text == "" {
		return text
	}
	filtered := text
	for _, term := range p.denylist {
		filtered = strings.ReplaceAll(filtered, term, maskToken)
	}
	return filtered
}

// PrepareContext builds the context window for a model call: at most one
// system prompt, then the newest maxHistory non-deleted history messages in
// chronological order, then the current message. Model adapters depend on
// exactly this ordering.
func (p *Pipeline) PrepareContext(current string, pctx Context, maxHistory int) []provider.ChatMessage {
	window := make([]provider.ChatMessage, 0, maxHistory+2)

	if pctx.SystemPrompt != "" {
		window = append(window, provider.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: pctx.SystemPrompt,
		})
	}

	visible := make([]model.Message, 0, len(pctx.History))
	for _, msg := range pctx.History {
		if !msg.IsDeleted {
			visible = append(visible, msg)
		}
	}
	if maxHistory > 0 && len(visible) > maxHistory {
		visible = visible[len(visible)-maxHistory:]
	}
	for _, msg := range visible {
		window = append(window, provider.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	window = append(window, provider.ChatMessage{
		Role:    string(model.RoleUser),
		Content: current,
	})
	return window
}

// CalculateCost estimates the token usage and cost of one exchange by
// whitespace splitting.
func (p *Pipeline) CalculateCost(input, output string, cfg model.ModelConfig) Cost {
	inputTokens := len(strings.Fields(input))
	outputTokens := len(strings.Fields(output))
	total := inputTokens + outputTokens

	return Cost{
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   total,
		EstimatedCost: float64(total) * costPerToken,
	}
}

// parseCommand splits "/name args..." at the first whitespace after the
// prefix.
func parseCommand(raw string) *Command {
	body := strings.TrimPrefix(raw, CommandPrefix)
	name, args, _ := strings.Cut(body, " ")
	return &Command{
		Name: name,
		Args: strings.TrimSpace(args),
	}
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
)

func newTestPipeline() *Pipeline {
	return New(logger.NewNop())
}

func TestProcessUserMessageText(t *testing.T) {
	p := newTestPipeline()

	result := p.ProcessUserMessage("  hello world  ", Context{})
	assert.True(t, result.IsValid)
	assert.Equal(t, TypeText, result.Type)
	assert.Equal(t, "hello world", result.Content)
	assert.Nil(t, result.Command)
}

func TestProcessUserMessageEmpty(t *testing.T) {
	p := newTestPipeline()

	for _, raw := range []string{"", "   ", "\n\t"} {
		result := p.ProcessUserMessage(raw, Context{})
		assert.False(t, result.IsValid)
		assert.NotEmpty(t, result.Error)
	}
}

func TestProcessUserMessageCommand(t *testing.T) {
	p := newTestPipeline()

	result := p.ProcessUserMessage("/clear all history", Context{})
	assert.True(t, result.IsValid)
	assert.Equal(t, TypeCommand, result.Type)
	require.NotNil(t, result.Command)
	assert.Equal(t, "clear", result.Command.Name)
	assert.Equal(t, "all history", result.Command.Args)
}

func TestProcessUserMessageCommandWithoutArgs(t *testing.T) {
	p := newTestPipeline()

	result := p.ProcessUserMessage("/help", Context{})
	require.NotNil(t, result.Command)
	assert.Equal(t, "help", result.Command.Name)
	assert.Empty(t, result.Command.Args)
}

func TestContentFilterMasksDeniedTerms(t *testing.T) {
	p := newTestPipeline()

	filtered := p.ApplyContentFilters("this is spam and more spam")
	assert.Equal(t, "this is *** and more ***", filtered)
	assert.NotContains(t, filtered, "spam")
}

func TestContentFilterIsIdempotent(t *testing.T) {
	p := newTestPipeline()

	once := p.ApplyContentFilters("malicious content here")
	twice := p.ApplyContentFilters(once)
	assert.Equal(t, once, twice)
}

func TestFormatResponseFilters(t *testing.T) {
	p := newTestPipeline()

	out := p.FormatResponse("  that looks inappropriate  ", Context{})
	assert.Equal(t, "that looks ***", out)
}

func TestPrepareContextOrdering(t *testing.T) {
	p := newTestPipeline()

	history := []model.Message{
		{Role: model.RoleUser, Content: "msg 1"},
		{Role: model.RoleAssistant, Content: "msg 2"},
		{Role: model.RoleUser, Content: "msg 3"},
		{Role: model.RoleAssistant, Content: "msg 4"},
		{Role: model.RoleUser, Content: "msg 5"},
	}

	window := p.PrepareContext("current", Context{
		History:      history,
		SystemPrompt: "be helpful",
	}, 2)

	require.Len(t, window, 4)
	assert.Equal(t, "system", window[0].Role)
	assert.Equal(t, "be helpful", window[0].Content)
	assert.Equal(t, "msg 4", window[1].Content)
	assert.Equal(t, "msg 5", window[2].Content)
	assert.Equal(t, "user", window[3].Role)
	assert.Equal(t, "current", window[3].Content)
}

func TestPrepareContextSkipsDeleted(t *testing.T) {
	p := newTestPipeline()

	history := []model.Message{
		{Role: model.RoleUser, Content: "kept"},
		{Role: model.RoleAssistant, Content: "cleared", IsDeleted: true},
	}

	window := p.PrepareContext("current", Context{History: history}, 10)
	require.Len(t, window, 2)
	assert.Equal(t, "kept", window[0].Content)
	assert.Equal(t, "current", window[1].Content)
}

func TestPrepareContextWithoutSystemPrompt(t *testing.T) {
	p := newTestPipeline()

	window := p.PrepareContext("hi", Context{}, 10)
	require.Len(t, window, 1)
	assert.Equal(t, "user", window[0].Role)
}

func TestCalculateCost(t *testing.T) {
	p := newTestPipeline()

	cost := p.CalculateCost("one two three", "four five", model.DefaultModelConfig())
	assert.Equal(t, 3, cost.InputTokens)
	assert.Equal(t, 2, cost.OutputTokens)
	assert.Equal(t, 5, cost.TotalTokens)
	assert.InDelta(t, 0.0005, cost.EstimatedCost, 1e-9)
}

func TestCalculateCostEmpty(t *testing.T) {
	p := newTestPipeline()

	cost := p.CalculateCost("", "", model.DefaultModelConfig())
	assert.Zero(t, cost.TotalTokens)
	assert.Zero(t, cost.EstimatedCost)
}

package rlm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeTestRequest() CompletionRequest {
	return NewCompletionRequest("test-model", []Message{UserMessage("Hello")}, 100)
}

func TestExplorationContext_Creation(t *testing.T) {
	ctx := NewExplorationContext(makeTestRequest(), DefaultBudgetConfig())
	require.Equal(t, uint32(0), ctx.Depth())
	require.Equal(t, uint32(0), ctx.ToolCallCount())
	require.Equal(t, uint64(0), ctx.TokensUsed())
}

func TestExplorationContext_BuildRequest(t *testing.T) {
	req := makeTestRequest().WithSystem("Be helpful")
	ctx := NewExplorationContext(req, DefaultBudgetConfig())
	built := ctx.BuildRequest()

	require.Equal(t, "test-model", built.Model)
	require.NotNil(t, built.System)
	require.False(t, built.Stream)
	require.Nil(t, built.Muninn)
}

func TestExplorationContext_AddUsage(t *testing.T) {
	ctx := NewExplorationContext(makeTestRequest(), DefaultBudgetConfig())
	ctx.AddUsage(NewUsage(100, 50))
	ctx.AddUsage(NewUsage(50, 25))
	require.Equal(t, uint64(225), ctx.TokensUsed())
}

func TestExplorationContext_FinalizeWithMetadata(t *testing.T) {
	req := makeTestRequest().WithMuninn(RecursiveMuninnConfig())
	ctx := NewExplorationContext(req, DefaultBudgetConfig())
	resp := NewCompletionResponse("msg_1", "model", []ContentBlock{TextBlock("Answer")}, StopEndTurn, NewUsage(10, 10))

	finalized := ctx.Finalize(resp)
	require.NotNil(t, finalized.Muninn)
}

func TestExplorationContext_FinalizeWithAnswer(t *testing.T) {
	ctx := NewExplorationContext(makeTestRequest(), DefaultBudgetConfig())
	resp := NewCompletionResponse("msg_1", "model", []ContentBlock{TextBlock("Intermediate")}, StopToolUse, NewUsage(10, 10))

	finalized := ctx.FinalizeWithAnswer(resp, "Final answer")
	require.Equal(t, "Final answer", finalized.Text())
	require.Equal(t, StopEndTurn, *finalized.StopReason)
}

package rlm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubQuery_Simple(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("sub_1", "model", []ContentBlock{TextBlock("Sub-query answer")}, StopEndTurn, NewUsage(50, 30)),
	}
	backend := NewMockBackend(responses)
	tools := newMockToolEnv()
	executor := NewSubQueryExecutor(backend, tools, "test-model")

	result, err := executor.Execute(context.Background(), NewSubQuery("What is the answer?"))
	require.NoError(t, err)
	require.Equal(t, "Sub-query answer", result.Answer)
	require.Equal(t, uint64(80), result.TokensUsed)
}

func TestSubQuery_WithFilteredTools(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("sub_1", "model", []ContentBlock{TextBlock("Done")}, StopEndTurn, NewUsage(10, 10)),
	}
	backend := NewMockBackend(responses)
	tools := newMockToolEnv()
	executor := NewSubQueryExecutor(backend, tools, "test-model")

	subquery := NewSubQuery("Question").WithAllowedTools([]string{"tool_a", "tool_c"})
	result, err := executor.Execute(context.Background(), subquery)
	require.NoError(t, err)
	require.Equal(t, "Done", result.Answer)
}

func TestSubQuery_WithCustomModel(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("sub_1", "custom-model", []ContentBlock{TextBlock("Answer")}, StopEndTurn, NewUsage(10, 10)),
	}
	backend := NewMockBackend(responses)
	tools := newMockToolEnv()
	executor := NewSubQueryExecutor(backend, tools, "default-model")

	subquery := NewSubQuery("Question").WithModel("custom-model")
	result, err := executor.Execute(context.Background(), subquery)
	require.NoError(t, err)
	require.Equal(t, "Answer", result.Answer)
}

func TestSubQuery_Builder(t *testing.T) {
	subquery := NewSubQuery("Question").
		WithSystem("Be concise").
		WithAllowedTools([]string{"read_file"}).
		WithSummarization().
		WithBudget(BudgetConfig{MaxTokens: u64ptr(5000)})

	require.Equal(t, "Question", subquery.Question)
	require.Equal(t, "Be concise", subquery.System)
	require.Equal(t, []string{"read_file"}, subquery.AllowedTools)
	require.True(t, subquery.Summarize)
	require.Equal(t, uint64(5000), *subquery.Budget.MaxTokens)
}

func TestDefaultSubQueryBudget(t *testing.T) {
	budget := DefaultSubQueryBudget()
	require.Equal(t, uint64(20000), *budget.MaxTokens)
	require.Equal(t, uint64(60), *budget.MaxDurationSec)
	require.Equal(t, uint32(3), *budget.MaxDepth)
	require.Equal(t, uint32(10), *budget.MaxToolCalls)
}

func TestSpawnSubqueryTool(t *testing.T) {
	tool := SpawnSubqueryTool()
	require.Equal(t, "spawn_subquery", tool.Name)
	require.Contains(t, tool.Description, "sub-query")
}

func TestFilteredToolEnvironment(t *testing.T) {
	inner := newMockToolEnv()
	inner.defs = []ToolDefinition{
		{Name: "allowed", Description: "Allowed", InputSchema: []byte(`{}`)},
		{Name: "blocked", Description: "Blocked", InputSchema: []byte(`{}`)},
	}

	filtered := newFilteredToolEnvironment(inner, []string{"allowed"})

	tools := filtered.AvailableTools()
	require.Len(t, tools, 1)
	require.Equal(t, "allowed", tools[0].Name)

	result, err := filtered.ExecuteTool(context.Background(), ToolUseBlock{ID: "t1", Name: "blocked"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content.Text, "not available")
}

package rlm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockToolEnv struct {
	responses map[string]ToolResultBlock
	errors    map[string]error
	calls     int
	defs      []ToolDefinition
}

func newMockToolEnv() *mockToolEnv {
	return &mockToolEnv{responses: map[string]ToolResultBlock{}, errors: map[string]error{}}
}

func (m *mockToolEnv) setResponse(name, text string) {
	m.responses[name] = NewToolResultSuccess(name, text)
}

func (m *mockToolEnv) AvailableTools() []ToolDefinition { return m.defs }

func (m *mockToolEnv) ExecuteTool(ctx context.Context, call ToolUseBlock) (ToolResultBlock, error) {
	m.calls++
	if err, ok := m.errors[call.Name]; ok {
		return ToolResultBlock{}, err
	}
	if resp, ok := m.responses[call.Name]; ok {
		resp.ToolUseID = call.ID
		return resp, nil
	}
	return NewToolResultSuccess(call.ID, "(no mock response configured)"), nil
}

func toolUseResponse(toolName, toolID string) CompletionResponse {
	return NewCompletionResponse("msg_1", "model", []ContentBlock{
		ToolUseBlockNew(toolID, toolName, []byte(`{"arg":"value"}`)),
	}, StopToolUse, NewUsage(10, 10))
}

func TestToolExecutor_ExecuteSingleTool(t *testing.T) {
	env := newMockToolEnv()
	env.setResponse("test_tool", "tool result")

	executor := NewToolExecutor(env)
	results, err := executor.ExecuteTools(context.Background(), toolUseResponse("test_tool", "t1"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].IsError)
	require.Equal(t, 1, env.calls)
}

func TestToolExecutor_ExecuteMultipleTools(t *testing.T) {
	env := newMockToolEnv()
	env.setResponse("tool_a", "a")
	env.setResponse("tool_b", "b")

	resp := NewCompletionResponse("msg_1", "model", []ContentBlock{
		ToolUseBlockNew("t1", "tool_a", []byte(`{}`)),
		ToolUseBlockNew("t2", "tool_b", []byte(`{}`)),
	}, StopToolUse, NewUsage(10, 10))

	executor := NewToolExecutor(env)
	results, err := executor.ExecuteTools(context.Background(), resp)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 2, env.calls)
}

func TestToolExecutor_ToolErrorBecomesResult(t *testing.T) {
	env := newMockToolEnv()
	env.errors["broken_tool"] = errBoom

	executor := NewToolExecutor(env)
	results, err := executor.ExecuteTools(context.Background(), toolUseResponse("broken_tool", "t1"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].IsError)
}

var errBoom = &ToolExecutionError{Tool: "broken_tool", Message: "boom"}

func TestTruncateString_Short(t *testing.T) {
	require.Equal(t, "short", truncateString("short", 100))
}

func TestTruncateString_Long(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	result := truncateString(string(long), 50)
	require.Contains(t, result, "truncated")
	require.Contains(t, result, "200 total chars")
}

func TestExtractResultPreview_Text(t *testing.T) {
	content := TextResultContent("Hello world")
	require.Equal(t, "Hello world", extractResultPreview(&content, 100))
}

func TestExtractResultPreview_Nil(t *testing.T) {
	require.Equal(t, "[no content]", extractResultPreview(nil, 100))
}

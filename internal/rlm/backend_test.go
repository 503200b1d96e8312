package rlm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockBackend_SingleResponse(t *testing.T) {
	backend := NewMockTextBackend("Hello!")

	req := NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100)
	resp, err := backend.Complete(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "Hello!", resp.Text())
	require.Equal(t, 1, backend.RequestCount())
}

func TestMockBackend_MultipleResponses(t *testing.T) {
	backend := NewMockBackend([]CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{TextBlock("First")}, StopEndTurn, NewUsage(10, 10)),
		NewCompletionResponse("msg_2", "model", []ContentBlock{TextBlock("Second")}, StopEndTurn, NewUsage(10, 10)),
	})

	r1, err := backend.Complete(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("1")}, 100))
	require.NoError(t, err)
	r2, err := backend.Complete(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("2")}, 100))
	require.NoError(t, err)

	require.Equal(t, "First", r1.Text())
	require.Equal(t, "Second", r2.Text())
	require.Equal(t, 2, backend.RequestCount())
}

func TestMockBackend_Exhausted(t *testing.T) {
	backend := NewMockBackend(nil)

	_, err := backend.Complete(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100))
	require.ErrorIs(t, err, ErrNoMoreResponses)
}

func TestMockBackend_WithToolUse(t *testing.T) {
	backend := NewMockBackend([]CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{
			TextBlock("Let me check."),
			ToolUseBlockNew("tool_1", "read_file", []byte(`{"path":"/foo.rs"}`)),
		}, StopToolUse, NewUsage(50, 30)),
	})

	resp, err := backend.Complete(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("Read foo.rs")}, 100))
	require.NoError(t, err)

	require.True(t, resp.HasToolUse())
	require.Equal(t, StopToolUse, *resp.StopReason)

	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	require.Equal(t, "read_file", uses[0].Name)
}

func TestMockBackend_Stream(t *testing.T) {
	backend := NewMockTextBackend("Streamed!")

	events, err := backend.CompleteStream(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100))
	require.NoError(t, err)

	var collected []StreamEvent
	for ev := range events {
		collected = append(collected, ev)
	}

	require.Len(t, collected, 6)
	require.Equal(t, EventMessageStart, collected[0].Type)
	require.Equal(t, EventMessageStop, collected[5].Type)
}

func TestMockBackend_HealthCheck(t *testing.T) {
	backend := NewMockTextBackend("test")
	require.NoError(t, backend.HealthCheck(context.Background()))
}

func TestLoggingBackend(t *testing.T) {
	inner := NewMockTextBackend("Logged!")
	backend := NewLoggingBackend(inner)

	require.Equal(t, "logging(mock)", backend.Name())

	resp, err := backend.Complete(context.Background(), NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100))
	require.NoError(t, err)
	require.Equal(t, "Logged!", resp.Text())
}

func TestDefaultFormatToolDefinitions_Empty(t *testing.T) {
	require.Equal(t, "No tools available.", DefaultFormatToolDefinitions(nil))
}

func TestDefaultFormatToolDefinitions_WithParams(t *testing.T) {
	tools := []ToolDefinition{{
		Name:        "read_file",
		Description: "Reads a file.",
		InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string","description":"file path"}}}`),
	}}
	out := DefaultFormatToolDefinitions(tools)
	require.Contains(t, out, "### read_file")
	require.Contains(t, out, "`path` (string): file path")
}

func TestDefaultFormatToolResult(t *testing.T) {
	require.Equal(t, "[Tool t1 Result]: ok", DefaultFormatToolResult("t1", "ok", false))
	require.Equal(t, "[Tool t1 Error]: boom", DefaultFormatToolResult("t1", "boom", true))
}

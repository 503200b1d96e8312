package rlm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newEngine(responses []CompletionResponse) (*RecursiveEngine, *mockToolEnv) {
	backend := NewMockBackend(responses)
	toolEnv := newMockToolEnv()
	deps := NewEngineDeps(backend, toolEnv)
	return NewRecursiveEngine(deps, DefaultEngineConfig()), toolEnv
}

func TestEngine_SimpleCompletion(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{TextBlock("Hello!")}, StopEndTurn, NewUsage(10, 5)),
	}
	engine, _ := newEngine(responses)

	request := NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100)
	response, err := engine.Complete(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, "Hello!", response.Text())
}

func TestEngine_ToolUseLoop(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{
			TextBlock("Let me check."),
			ToolUseBlockNew("tool_1", "read_file", []byte(`{"path":"/foo.go"}`)),
		}, StopToolUse, NewUsage(20, 15)),
		NewCompletionResponse("msg_2", "model", []ContentBlock{
			TextBlock("The file contains: test content"),
		}, StopEndTurn, NewUsage(50, 30)),
	}

	engine, toolEnv := newEngine(responses)
	toolEnv.setResponse("read_file", "test content")

	request := NewCompletionRequest("test-model", []Message{UserMessage("Read /foo.go")}, 100)
	response, err := engine.Complete(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, "The file contains: test content", response.Text())
	require.Equal(t, 1, toolEnv.calls)
}

func TestEngine_MultipleToolCalls(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{
			ToolUseBlockNew("t1", "tool_a", []byte(`{}`)),
			ToolUseBlockNew("t2", "tool_b", []byte(`{}`)),
		}, StopToolUse, NewUsage(10, 10)),
		NewCompletionResponse("msg_2", "model", []ContentBlock{TextBlock("Done")}, StopEndTurn, NewUsage(30, 10)),
	}

	engine, toolEnv := newEngine(responses)

	request := NewCompletionRequest("test-model", []Message{UserMessage("Use both tools")}, 100)
	response, err := engine.Complete(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, "Done", response.Text())
	require.Equal(t, 2, toolEnv.calls)
}

func TestEngine_ExplorationMetadata(t *testing.T) {
	responses := []CompletionResponse{
		NewCompletionResponse("msg_1", "model", []ContentBlock{
			ToolUseBlockNew("tool_1", "tool", []byte(`{}`)),
		}, StopToolUse, NewUsage(100, 50)),
		NewCompletionResponse("msg_2", "model", []ContentBlock{TextBlock("Done")}, StopEndTurn, NewUsage(200, 100)),
	}

	engine, _ := newEngine(responses)

	request := NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100).
		WithMuninn(RecursiveMuninnConfig())

	response, err := engine.Complete(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, response.Muninn)
	require.Equal(t, uint32(1), response.Muninn.DepthReached)
	require.Equal(t, uint32(1), response.Muninn.ToolCalls)
	require.Equal(t, uint64(450), response.Muninn.TokensUsed)
}

func TestEngine_ForcedTerminationAtDepthLimit(t *testing.T) {
	toolResp := NewCompletionResponse("msg_1", "model", []ContentBlock{
		ToolUseBlockNew("t1", "tool_a", []byte(`{}`)),
	}, StopToolUse, NewUsage(10, 10))

	responses := []CompletionResponse{toolResp, toolResp, toolResp}
	backend := NewMockBackend(responses)
	toolEnv := newMockToolEnv()
	toolEnv.setResponse("tool_a", "result")

	maxDepth := uint32(1)
	budget := BudgetConfig{MaxDepth: &maxDepth}
	deps := NewEngineDeps(backend, toolEnv)
	engine := NewRecursiveEngine(deps, DefaultEngineConfig().WithBudget(budget))

	request := NewCompletionRequest("test-model", []Message{UserMessage("Hi")}, 100).
		WithMuninn(RecursiveMuninnConfig())

	response, err := engine.Complete(context.Background(), request)
	require.NoError(t, err)
	require.Contains(t, response.Text(), "Exploration limit reached")
}

func TestIsRecursive(t *testing.T) {
	request := NewCompletionRequest("model", []Message{UserMessage("Hi")}, 100)
	require.False(t, IsRecursive(request))

	nonRecursive := NewCompletionRequest("model", []Message{UserMessage("Hi")}, 100).
		WithMuninn(DefaultMuninnConfig())
	require.False(t, IsRecursive(nonRecursive))

	recursive := NewCompletionRequest("model", []Message{UserMessage("Hi")}, 100).
		WithMuninn(RecursiveMuninnConfig())
	require.True(t, IsRecursive(recursive))
}

func TestEngineConfig_Default(t *testing.T) {
	config := DefaultEngineConfig()
	require.Equal(t, uint32(10), *config.Budget.MaxDepth)
	require.Equal(t, uint64(100000), *config.Budget.MaxTokens)
	require.Equal(t, "", config.WorkDir)
	require.Equal(t, float32(0.1), *config.Temperature)
	require.True(t, config.InjectSystemPrompt)
}

func TestEngineConfig_Builder(t *testing.T) {
	depth := uint32(5)
	budget := BudgetConfig{MaxDepth: &depth}

	config := EngineConfig{}.
		WithBudget(budget).
		WithWorkDir("/test/path").
		WithTemperature(0.5)
	config.InjectSystemPrompt = false

	require.Equal(t, uint32(5), *config.Budget.MaxDepth)
	require.Equal(t, "/test/path", config.WorkDir)
	require.Equal(t, float32(0.5), *config.Temperature)
	require.False(t, config.InjectSystemPrompt)
}

func TestNewRecursiveEngineFromComponents(t *testing.T) {
	backend := NewMockBackend(nil)
	toolEnv := newMockToolEnv()
	engine := NewRecursiveEngineFromComponents(backend, toolEnv)
	require.NotNil(t, engine)
}

func TestTruncateToLastNUserMessages_WithinLimit(t *testing.T) {
	messages := []Message{UserMessage("one"), UserMessage("two")}
	result := truncateToLastNUserMessages(messages, 3)
	require.Len(t, result, 2)
}

func TestTruncateToLastNUserMessages_Truncates(t *testing.T) {
	messages := []Message{
		UserMessage("one"),
		UserMessage("two"),
		UserMessage("three"),
		UserMessage("four"),
	}
	result := truncateToLastNUserMessages(messages, 2)
	require.Len(t, result, 2)
	text, _ := result[0].Content.AsText()
	require.Equal(t, "three", text)
}

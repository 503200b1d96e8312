package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colliery-io/muninn/internal/rlm"
)

func TestRegistry_DefinitionsInRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewFinalAnswerTool())
	registry.Register(NewExecuteCodeTool())

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	require.Equal(t, "final_answer", defs[0].Name)
	require.Equal(t, "execute_code", defs[1].Name)
}

func TestRegistry_ReRegisterOverwritesNotDuplicates(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewFinalAnswerTool())
	registry.Register(NewFinalAnswerTool())

	require.Len(t, registry.Definitions(), 1)
}

func TestEnvironment_ExecuteUnknownTool(t *testing.T) {
	env := NewEnvironment(NewRegistry())
	result, err := env.ExecuteTool(context.Background(), rlm.ToolUseBlock{ID: "call_1", Name: "nonexistent"})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestEnvironment_ExecuteSuccess(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewFinalAnswerTool())
	env := NewEnvironment(registry)

	input, _ := json.Marshal(map[string]string{"answer": "the answer"})
	result, err := env.ExecuteTool(context.Background(), rlm.ToolUseBlock{ID: "call_1", Name: "final_answer", Input: input})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "the answer", result.Content.Text)
}

func TestEnvironment_ExecuteToolError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewQueryMemoryTool(NewMemoryStore()))
	env := NewEnvironment(registry)

	input, _ := json.Marshal(map[string]string{"key": "missing"})
	result, err := env.ExecuteTool(context.Background(), rlm.ToolUseBlock{ID: "call_1", Name: "query_memory", Input: input})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

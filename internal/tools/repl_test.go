package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteCodeTool_RejectsUnsupportedLanguage(t *testing.T) {
	tool := NewExecuteCodeTool()
	input, _ := json.Marshal(map[string]string{"language": "ruby", "source": "puts 1"})
	_, err := tool.Execute(context.Background(), input)
	require.Error(t, err)
}

func TestExecuteCodeTool_Bash(t *testing.T) {
	tool := NewExecuteCodeTool()
	input, _ := json.Marshal(map[string]string{"language": "bash", "source": "echo hello"})
	output, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)

	var result executeCodeResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	require.Contains(t, result.Stdout, "hello")
	require.True(t, result.Success)
}

func TestExecuteCodeTool_BashFailureStillReturnsOutput(t *testing.T) {
	tool := NewExecuteCodeTool()
	input, _ := json.Marshal(map[string]string{"language": "bash", "source": "exit 1"})
	output, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)

	var result executeCodeResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	require.False(t, result.Success)
}

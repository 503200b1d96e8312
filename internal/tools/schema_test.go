package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type schemaTestArgs struct {
	Path      string `json:"path" jsonschema:"required,description=File path relative to the project root"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=First line to include"`
}

func TestGenerateSchema_RequiredAndDescription(t *testing.T) {
	raw, err := generateSchema[schemaTestArgs]()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Equal(t, "object", decoded["type"])
	require.NotContains(t, decoded, "$schema")
	require.NotContains(t, decoded, "$id")

	required, ok := decoded["required"].([]any)
	require.True(t, ok)
	require.Contains(t, required, "path")
	require.NotContains(t, required, "start_line")

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	path, ok := props["path"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "File path relative to the project root", path["description"])
}

func TestMustSchema_PanicsNever(t *testing.T) {
	require.NotPanics(t, func() {
		mustSchema[schemaTestArgs]()
	})
}

func TestReadFileTool_SchemaMatchesArgs(t *testing.T) {
	tool := NewReadFileTool(t.TempDir())
	raw := tool.InputSchema()

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	props := decoded["properties"].(map[string]any)
	require.Contains(t, props, "path")
	require.Contains(t, props, "start_line")
	require.Contains(t, props, "end_line")
}

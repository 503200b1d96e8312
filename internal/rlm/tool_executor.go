package rlm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ToolEnvironment executes a single tool call on behalf of the recursive
// exploration engine. Implementations live in the tools package, which
// wires named tools (filesystem access, code-graph queries, memory,
// sub-queries) to this interface; the engine itself never depends on any
// concrete tool.
type ToolEnvironment interface {
	ExecuteTool(ctx context.Context, call ToolUseBlock) (ToolResultBlock, error)
	AvailableTools() []ToolDefinition
}

// ToolExecutor runs every tool_use request in a response and collects the
// corresponding tool_result blocks.
type ToolExecutor struct {
	tools ToolEnvironment
}

func NewToolExecutor(tools ToolEnvironment) *ToolExecutor {
	return &ToolExecutor{tools: tools}
}

const toolPreviewMaxLen = 500

// ExecuteTools runs every tool_use block in response. A tool that returns
// an error still produces a tool_result (marked is_error) rather than
// aborting exploration — the model can see the failure and adapt.
func (e *ToolExecutor) ExecuteTools(ctx context.Context, response CompletionResponse) ([]ToolResultBlock, error) {
	uses := response.ToolUses()
	results := make([]ToolResultBlock, 0, len(uses))

	for _, use := range uses {
		start := time.Now()
		result, success, preview := e.runOne(ctx, use)
		elapsed := time.Since(start)

		slog.Debug("tool execution",
			"tool", use.Name,
			"tool_id", use.ID,
			"success", success,
			"output_preview", preview,
			"duration_ms", elapsed.Milliseconds())

		results = append(results, result)
	}

	return results, nil
}

func (e *ToolExecutor) runOne(ctx context.Context, use ToolUseBlock) (result ToolResultBlock, success bool, preview string) {
	r, err := e.tools.ExecuteTool(ctx, use)
	if err != nil {
		preview = truncateString(err.Error(), toolPreviewMaxLen)
		return NewToolResultError(use.ID, err.Error()), false, preview
	}
	preview = extractResultPreview(r.Content, toolPreviewMaxLen)
	return r, true, preview
}

func truncateString(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return fmt.Sprintf("%s... [truncated, %d total chars]", content[:maxLen], len(content))
}

func extractResultPreview(content *ToolResultContent, maxLen int) string {
	if content == nil {
		return "[no content]"
	}
	if content.Blocks != nil {
		encoded, _ := json.Marshal(content.Blocks)
		return truncateString(string(encoded), maxLen)
	}
	return truncateString(content.Text, maxLen)
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colliery-io/muninn/internal/rlm"
)

type spawnSubqueryArgs struct {
	Question     string   `json:"question"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
	Summarize    bool     `json:"summarize,omitempty"`
	MaxDepth     uint32   `json:"max_depth,omitempty"`
}

// NewSpawnSubqueryTool wraps rlm.SubQueryExecutor so the registry can
// expose spawn_subquery alongside the rest of the tool catalogue.
// executor must be built against the SAME backend and tool
// environment the parent exploration is using.
func NewSpawnSubqueryTool(executor *rlm.SubQueryExecutor) Tool {
	def := rlm.SpawnSubqueryTool()
	return newSimpleTool(def.Name, def.Description, def.InputSchema,
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args spawnSubqueryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			if args.Question == "" {
				return "", fmt.Errorf("question must not be empty")
			}

			subquery := rlm.NewSubQuery(args.Question)
			if len(args.AllowedTools) > 0 {
				subquery = subquery.WithAllowedTools(args.AllowedTools)
			}
			if args.Summarize {
				subquery = subquery.WithSummarization()
			}
			if args.MaxDepth > 0 {
				budget := subquery.Budget
				budget.MaxDepth = &args.MaxDepth
				subquery = subquery.WithBudget(budget)
			}

			result, err := executor.Execute(ctx, subquery)
			if err != nil {
				return "", err
			}

			encoded, err := json.MarshalIndent(map[string]interface{}{
				"answer":        result.Answer,
				"tokens_used":   result.TokensUsed,
				"tool_calls":    result.ToolCalls,
				"depth_reached": result.DepthReached,
			}, "", "  ")
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		})
}

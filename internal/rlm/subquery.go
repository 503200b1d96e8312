package rlm

import (
	"context"
	"fmt"
)

// SubQuery describes an isolated sub-exploration that the main engine
// can spawn to investigate a narrower question without growing the
// parent conversation's context.
type SubQuery struct {
	Question     string
	System       string
	AllowedTools []string
	Budget       BudgetConfig
	Summarize    bool
	Model        string
}

func NewSubQuery(question string) SubQuery {
	return SubQuery{Question: question, Budget: DefaultSubQueryBudget()}
}

// DefaultSubQueryBudget is deliberately tighter than the parent
// exploration's default budget: a sub-query exists to answer one
// narrow question cheaply, not to re-run a full exploration.
func DefaultSubQueryBudget() BudgetConfig {
	return BudgetConfig{
		MaxTokens:      u64ptr(20000),
		MaxDurationSec: u64ptr(60),
		MaxDepth:       u32ptr(3),
		MaxToolCalls:   u32ptr(10),
	}
}

func (s SubQuery) WithSystem(system string) SubQuery {
	s.System = system
	return s
}

func (s SubQuery) WithAllowedTools(tools []string) SubQuery {
	s.AllowedTools = tools
	return s
}

func (s SubQuery) WithBudget(budget BudgetConfig) SubQuery {
	s.Budget = budget
	return s
}

func (s SubQuery) WithSummarization() SubQuery {
	s.Summarize = true
	return s
}

func (s SubQuery) WithModel(model string) SubQuery {
	s.Model = model
	return s
}

// SubQueryResult is what a spawned sub-query reports back to its caller.
type SubQueryResult struct {
	Answer       string
	TokensUsed   uint64
	ToolCalls    uint32
	DepthReached uint32
}

// SubQueryExecutor runs sub-queries as their own isolated
// RecursiveEngine instances, each with its own budget and, optionally,
// a restricted tool set.
type SubQueryExecutor struct {
	backend     LLMBackend
	tools       ToolEnvironment
	parentModel string
}

func NewSubQueryExecutor(backend LLMBackend, tools ToolEnvironment, parentModel string) *SubQueryExecutor {
	return &SubQueryExecutor{backend: backend, tools: tools, parentModel: parentModel}
}

// Execute runs subquery to completion in its own isolated engine.
func (e *SubQueryExecutor) Execute(ctx context.Context, subquery SubQuery) (SubQueryResult, error) {
	tools := e.tools
	if len(subquery.AllowedTools) > 0 {
		tools = newFilteredToolEnvironment(e.tools, subquery.AllowedTools)
	}

	deps := NewEngineDeps(e.backend, tools)
	engineConfig := DefaultEngineConfig().WithBudget(subquery.Budget)
	engine := NewRecursiveEngine(deps, engineConfig)

	model := subquery.Model
	if model == "" {
		model = e.parentModel
	}

	request := NewCompletionRequest(model, []Message{UserMessage(subquery.Question)}, 4096).
		WithMuninn(RecursiveMuninnConfig().WithBudget(subquery.Budget))
	if subquery.System != "" {
		request = request.WithSystem(subquery.System)
	}

	response, err := engine.Complete(ctx, request)
	if err != nil {
		return SubQueryResult{}, err
	}

	// Summarization is a declared-but-unimplemented knob: synthesizing a
	// second, shorter answer would cost another full completion round
	// trip, so for now it returns the same text a non-summarized
	// sub-query would.
	answer := response.Text()

	var metadata ExplorationMetadata
	if response.Muninn != nil {
		metadata = *response.Muninn
	}
	return SubQueryResult{
		Answer:       answer,
		TokensUsed:   metadata.TokensUsed,
		ToolCalls:    metadata.ToolCalls,
		DepthReached: metadata.DepthReached,
	}, nil
}

// filteredToolEnvironment restricts an inner ToolEnvironment to a named
// subset of tools, for sub-queries that shouldn't have access to the
// full tool surface the parent exploration does.
type filteredToolEnvironment struct {
	inner   ToolEnvironment
	allowed map[string]bool
}

func newFilteredToolEnvironment(inner ToolEnvironment, allowed []string) *filteredToolEnvironment {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	return &filteredToolEnvironment{inner: inner, allowed: set}
}

func (f *filteredToolEnvironment) ExecuteTool(ctx context.Context, call ToolUseBlock) (ToolResultBlock, error) {
	if !f.allowed[call.Name] {
		return NewToolResultError(call.ID, fmt.Sprintf("Tool '%s' is not available in this sub-query", call.Name)), nil
	}
	return f.inner.ExecuteTool(ctx, call)
}

func (f *filteredToolEnvironment) AvailableTools() []ToolDefinition {
	all := f.inner.AvailableTools()
	out := make([]ToolDefinition, 0, len(all))
	for _, t := range all {
		if f.allowed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// SpawnSubqueryTool is the tool definition the RLM engine exposes so a
// model can delegate a sub-question to an isolated exploration.
func SpawnSubqueryTool() ToolDefinition {
	return ToolDefinition{
		Name: "spawn_subquery",
		Description: "Spawn a sub-query to investigate a specific aspect in isolation. " +
			"Use this when you need to deeply explore a sub-topic without cluttering the main conversation context.",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {
				"question": {
					"type": "string",
					"description": "The question for the sub-query to answer"
				},
				"allowed_tools": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Tools available to the sub-query (empty = all tools)"
				},
				"summarize": {
					"type": "boolean",
					"description": "Accepted but not acted on: the sub-query's answer is returned as is"
				},
				"max_depth": {
					"type": "integer",
					"description": "Maximum recursion depth for the sub-query"
				}
			},
			"required": ["question"]
		}`),
	}
}

// Package tools implements the concrete tool catalogue the recursive
// exploration engine drives: filesystem access, code-graph queries, a
// session-scoped memory store, a sandboxed REPL, and sub-query
// spawning. Registry wires named tools to rlm.ToolEnvironment so the
// engine itself never depends on any concrete tool.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colliery-io/muninn/internal/rlm"
)

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the set of tools available to one exploration run.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool to the registry, overwriting any prior tool of the
// same name.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns every registered Tool in registration order, for
// consumers (the MCP exposure) that need the concrete tool rather than
// its rlm.ToolDefinition projection.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions renders every registered tool as an rlm.ToolDefinition,
// in registration order, for attaching to a completion request.
func (r *Registry) Definitions() []rlm.ToolDefinition {
	defs := make([]rlm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, rlm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Environment adapts a Registry to rlm.ToolEnvironment.
type Environment struct {
	registry *Registry
}

func NewEnvironment(registry *Registry) *Environment {
	return &Environment{registry: registry}
}

func (e *Environment) AvailableTools() []rlm.ToolDefinition {
	return e.registry.Definitions()
}

// Registry exposes the underlying Registry, so a consumer that needs the
// concrete tool set (the MCP exposure) can share this exact instance
// rather than building its own.
func (e *Environment) Registry() *Registry {
	return e.registry
}

func (e *Environment) ExecuteTool(ctx context.Context, call rlm.ToolUseBlock) (rlm.ToolResultBlock, error) {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return rlm.NewToolResultError(call.ID, fmt.Sprintf("unknown tool %q", call.Name)), nil
	}

	output, err := tool.Execute(ctx, call.Input)
	if err != nil {
		return rlm.NewToolResultError(call.ID, err.Error()), nil
	}
	return rlm.NewToolResultSuccess(call.ID, output), nil
}

// simpleTool adapts a name/description/schema/execute closure into a
// Tool, for small tools that don't need their own type.
type simpleTool struct {
	name        string
	description string
	schema      json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage) (string, error)
}

func (t simpleTool) Name() string                { return t.name }
func (t simpleTool) Description() string          { return t.description }
func (t simpleTool) InputSchema() json.RawMessage { return t.schema }
func (t simpleTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.execute(ctx, input)
}

func newSimpleTool(name, description string, schema json.RawMessage, execute func(ctx context.Context, input json.RawMessage) (string, error)) Tool {
	return simpleTool{name: name, description: description, schema: schema, execute: execute}
}

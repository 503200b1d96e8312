package tools

import (
	"github.com/colliery-io/muninn/internal/graph"
	"github.com/colliery-io/muninn/internal/rlm"
)

// BuildEnvironment assembles the standard tool catalogue - filesystem,
// graph, memory, REPL, and sub-query spawning - into a single
// rlm.ToolEnvironment for one exploration run. backend and model are
// used to configure the spawn_subquery tool's isolated sub-engines.
func BuildEnvironment(workDir string, store *graph.Store, backend rlm.LLMBackend, model string) *Environment {
	registry := NewRegistry()
	env := NewEnvironment(registry)

	registry.Register(NewReadFileTool(workDir))
	registry.Register(NewListDirectoryTool(workDir))
	registry.Register(NewSearchFilesTool(workDir))
	registry.Register(NewFinalAnswerTool())

	if store != nil {
		registry.Register(NewGraphQueryTool(store))
		registry.Register(NewFindCallersTool(store))
		registry.Register(NewFindImplementationsTool(store))
		registry.Register(NewGetSymbolTool(store))
		registry.Register(NewFindSymbolsTool(store))
	}

	memory := NewMemoryStore()
	registry.Register(NewStoreMemoryTool(memory))
	registry.Register(NewQueryMemoryTool(memory))
	registry.Register(NewSearchMemoryTool(memory))
	registry.Register(NewListMemoriesTool(memory))
	registry.Register(NewDeleteMemoryTool(memory))

	registry.Register(NewExecuteCodeTool())

	if backend != nil {
		subqueryExecutor := rlm.NewSubQueryExecutor(backend, env, model)
		registry.Register(NewSpawnSubqueryTool(subqueryExecutor))
	}

	return env
}

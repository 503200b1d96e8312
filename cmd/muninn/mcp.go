package main

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/colliery-io/muninn/internal/tools"
)

// MCPCmd starts an MCP stdio server exposing the same tool registry the
// HTTP proxy's RLM engine drives, so an editor or agent that speaks MCP
// natively can call read_file/graph_query/etc. directly without going
// through the Messages-shaped proxy at all.
type MCPCmd struct{}

func (c *MCPCmd) Run(cli *CLI) error {
	configPath := resolvedConfigPath(cli.Config)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	deps, err := buildRuntimeDeps(cfg, configPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	mcpServer := server.NewMCPServer("muninn", "0.1.0")
	for _, tool := range deps.registry.Tools() {
		registerMCPTool(mcpServer, tool)
	}

	return server.ServeStdio(mcpServer)
}

// registerMCPTool adapts one internal tool into an MCP tool definition
// and handler, translating the internal Tool's string-or-error result
// into the MCP content-block shape.
func registerMCPTool(mcpServer *server.MCPServer, tool tools.Tool) {
	def := mcpgo.NewToolWithRawSchema(tool.Name(), tool.Description(), tool.InputSchema())

	mcpServer.AddTool(def, func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		input, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcpgo.NewToolResultError(fmt.Sprintf("encoding arguments: %v", err)), nil
		}

		output, err := tool.Execute(ctx, input)
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultText(output), nil
	})
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colliery-io/muninn/internal/config"
)

// InitCmd scaffolds .muninn/config.yaml with commented defaults.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

const scaffoldConfig = `# Muninn project configuration.
# Environment references like ${ANTHROPIC_API_KEY} are expanded at load time.

project:
  root: .

graph:
  path: .muninn/graph.db
  extensions: [go, py, rs, c, cpp, h, hpp]

# strategy: always-passthrough | always-rlm | llm | heuristic | hybrid
router:
  strategy: llm
  provider: anthropic
  model: claude-haiku-4-20250514

rlm:
  provider: anthropic
  model: claude-sonnet-4-20250514

budget:
  max_tokens: 100000
  max_depth: 8
  max_tool_calls: 40
  max_duration_secs: 120

providers:
  anthropic:
    api_key: ${ANTHROPIC_API_KEY}

server:
  host: 127.0.0.1
  port: 8787
  shutdown_grace_secs: 10

logging:
  level: info
  format: json
`

func (c *InitCmd) Run(cli *CLI) error {
	path := resolvedConfigPath(cli.Config)
	if path == "" {
		path = config.DefaultConfigPath
	}

	if !c.Force {
		if _, err := os.Stat(path); err == nil {
			return newConfigError("%s already exists; pass --force to overwrite", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(scaffoldConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Set ANTHROPIC_API_KEY, then run 'muninn oauth authenticate' or use an API key directly.")
	return nil
}

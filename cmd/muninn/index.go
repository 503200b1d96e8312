package main

import (
	"fmt"
	"os"

	"github.com/colliery-io/muninn/internal/graph"
)

// IndexCmd walks project.root and builds (or fully rebuilds) the graph
// store once, then exits.
type IndexCmd struct {
	Rebuild bool `help:"Delete the existing graph database before indexing."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	configPath := resolvedConfigPath(cli.Config)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if c.Rebuild {
		if err := os.Remove(cfg.Graph.Path); err != nil && !os.IsNotExist(err) {
			return newConfigError("removing graph database %s: %v", cfg.Graph.Path, err)
		}
	}

	store, err := graph.Open(cfg.Graph.Path)
	if err != nil {
		return newConfigError("opening graph store %s: %v", cfg.Graph.Path, err)
	}
	defer store.Close()

	projectRoot := cfg.ResolvedProjectRoot(configPath)
	builder := graph.NewBuilder(graph.NewParser(), store)

	stats, err := builder.BuildDirectory(projectRoot)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", projectRoot, err)
	}

	fmt.Printf("Indexed %s\n", projectRoot)
	fmt.Printf("  files:  %d\n", stats.FilesProcessed)
	fmt.Printf("  nodes:  %d\n", stats.NodesAdded)
	fmt.Printf("  edges:  %d\n", stats.EdgesAdded)
	fmt.Printf("  parse:  %dms\n", stats.ParseTimeMs)
	fmt.Printf("  store:  %dms\n", stats.StoreTimeMs)
	return nil
}

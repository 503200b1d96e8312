package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/colliery-io/muninn/internal/graph"
	"github.com/colliery-io/muninn/internal/proxy"
)

// ProxyCmd runs the HTTP proxy server in the foreground until signaled.
type ProxyCmd struct {
	Port int `help:"Override server.port from config." default:"0"`
}

func (c *ProxyCmd) Run(cli *CLI) error {
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

	port := cfg.Server.Port
	if c.Port != 0 {
		port = c.Port
	}
	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", port))

	logStartupSummary(slog.Default(), cfg, addr)

	projectRoot := cfg.ResolvedProjectRoot(configPath)
	watcher, err := graph.NewFileWatcherWithConfig(projectRoot, graph.WatcherConfig{
		DebounceDuration: 300 * time.Millisecond,
		Extensions:       cfg.Graph.Extensions,
		UseGitignore:     true,
	})
	if err != nil {
		return newConfigError("starting file watcher on %s: %v", projectRoot, err)
	}
	defer watcher.Close()

	indexer := graph.NewIndexer(graph.NewBuilder(graph.NewParser(), deps.store), watcher, slog.Default())
	go indexer.Run()

	srv := proxy.NewServer(addr, time.Duration(cfg.Server.ShutdownGraceSecs)*time.Second, proxy.Deps{
		Router:        deps.router,
		Engine:        deps.engine,
		Passthrough:   deps.passthrough,
		Observability: deps.observ,
		Traces:        deps.traces,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return newBindError("proxy server: %v", err)
	}
	return nil
}

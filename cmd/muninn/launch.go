package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/colliery-io/muninn/internal/graph"
	"github.com/colliery-io/muninn/internal/proxy"
)

// LaunchCmd starts the proxy on an ephemeral local port in the
// background, sets the launched agent's base-URL environment variable
// to point at it, and execs the agent binary with the remaining args.
// It is embedded by the claude/cursor/aider subcommand types below,
// each of which supplies the agent name runLaunch needs to pick the
// right binary and environment variable.
type LaunchCmd struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Arguments forwarded to the launched agent."`
}

// ClaudeCmd, CursorCmd, and AiderCmd each launch the proxy against a
// different coding-agent binary; only the agent name differs between
// them, so each Run is a one-line call into the shared runLaunch.
type ClaudeCmd struct{ LaunchCmd }
type CursorCmd struct{ LaunchCmd }
type AiderCmd struct{ LaunchCmd }

func (c *ClaudeCmd) Run(cli *CLI) error { return runLaunch(cli, "claude", c.Args) }
func (c *CursorCmd) Run(cli *CLI) error { return runLaunch(cli, "cursor", c.Args) }
func (c *AiderCmd) Run(cli *CLI) error  { return runLaunch(cli, "aider", c.Args) }

// agentBaseURLEnv names the environment variable each supported agent
// reads for its Anthropic-compatible base URL.
var agentBaseURLEnv = map[string]string{
	"claude": "ANTHROPIC_BASE_URL",
	"cursor": "CURSOR_ANTHROPIC_BASE_URL",
	"aider":  "ANTHROPIC_API_BASE",
}

func runLaunch(cli *CLI, agentName string, args []string) error {
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

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, "0"))
	if err != nil {
		return newBindError("binding ephemeral port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

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

	indexer := graph.NewIndexer(graph.NewBuilder(graph.NewParser(), deps.store), watcher, nil)
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

	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.Start(ctx) }()

	envVar, ok := agentBaseURLEnv[agentName]
	if !ok {
		return newConfigError("unknown agent %q", agentName)
	}

	cmd := exec.CommandContext(ctx, agentName, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=http://%s", envVar, addr))

	runErr := cmd.Run()
	stop()
	<-srvErrCh

	if runErr != nil {
		return fmt.Errorf("running %s: %w", agentName, runErr)
	}
	return nil
}

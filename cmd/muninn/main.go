// Command muninn is the interposition proxy's CLI: it runs the HTTP
// proxy server, builds and rebuilds the code graph index, scaffolds a
// project config, drives the OAuth refresh-grant flow, and launches a
// coding-agent binary pointed at a freshly started proxy instance.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/colliery-io/muninn/internal/logger"
)

// Exit codes, distinct per failure class so a wrapping script can tell
// them apart without parsing stderr.
const (
	exitOK          = 0
	exitConfigError = 1
	exitBindError   = 2
	exitRuntimeError = 3
)

// CLI is the root kong command set.
type CLI struct {
	Config   string `help:"Path to .muninn/config.yaml (YAML only; TOML is not read)." type:"path"`
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn, error." default:"info"`
	LogFile  string `name:"log-file" help:"Write logs to this file instead of stderr." type:"path"`

	Proxy  ProxyCmd  `cmd:"" help:"Run the HTTP proxy server in the foreground."`
	Index  IndexCmd  `cmd:"" help:"Build or rebuild the code graph index, then exit."`
	Init   InitCmd   `cmd:"" help:"Scaffold .muninn/config.yaml with commented defaults."`
	OAuth  OAuthCmd  `cmd:"" help:"Manage OAuth authentication against the configured provider."`
	MCP    MCPCmd    `cmd:"" help:"Expose the tool registry over an MCP stdio server."`
	Claude ClaudeCmd `cmd:"" help:"Start the proxy on an ephemeral port and exec claude against it."`
	Cursor CursorCmd `cmd:"" help:"Start the proxy on an ephemeral port and exec cursor against it."`
	Aider  AiderCmd  `cmd:"" help:"Start the proxy on an ephemeral port and exec aider against it."`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("muninn"),
		kong.Description("Muninn - a recursive-exploration interposition proxy for coding agents."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "muninn: %v\n", err)
		os.Exit(exitConfigError)
	}

	out := os.Stderr
	var cleanup func()
	if cli.LogFile != "" {
		f, c, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "muninn: opening log file: %v\n", err)
			os.Exit(exitConfigError)
		}
		out, cleanup = f, c
	}
	logger.Init(level, out, "text")
	if cleanup != nil {
		defer cleanup()
	}

	switch runErr := ctx.Run(&cli); {
	case runErr == nil:
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "muninn: %v\n", runErr)
		os.Exit(exitCodeFor(runErr))
	}
}

// exitCodeFor maps an error raised by a subcommand's Run to one of the
// small distinct exit codes a wrapping script can branch on.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *ConfigError:
		return exitConfigError
	case *BindError:
		return exitBindError
	default:
		return exitRuntimeError
	}
}

// ConfigError reports a problem loading or validating configuration.
type ConfigError struct{ msg string }

func (e *ConfigError) Error() string { return e.msg }

func newConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// BindError reports a failure to bind the proxy's listening address.
type BindError struct{ msg string }

func (e *BindError) Error() string { return e.msg }

func newBindError(format string, args ...any) *BindError {
	return &BindError{msg: fmt.Sprintf(format, args...)}
}

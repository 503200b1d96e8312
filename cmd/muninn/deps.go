package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/colliery-io/muninn/internal/config"
	"github.com/colliery-io/muninn/internal/graph"
	"github.com/colliery-io/muninn/internal/observability"
	"github.com/colliery-io/muninn/internal/passthrough"
	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/router"
	"github.com/colliery-io/muninn/internal/token"
	"github.com/colliery-io/muninn/internal/tools"
	"github.com/colliery-io/muninn/internal/tracing"
)

// resolvedConfigPath returns the --config flag if set, else the default
// location, consistent with every subcommand that reads config.
func resolvedConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return config.DefaultConfigPath
}

// loadConfig loads and validates the project config, wrapping decode and
// validation failures as a *ConfigError so main's exit-code mapping can
// tell a bad config apart from a runtime failure.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, newConfigError("loading config %s: %v", path, err)
	}
	return cfg, nil
}

// runtimeDeps bundles everything a running proxy or indexer needs,
// built once from a loaded Config.
type runtimeDeps struct {
	store       *graph.Store
	backend     rlm.LLMBackend
	tokens      token.Manager
	passthrough *passthrough.Passthrough
	registry    *tools.Registry
	engine      *rlm.RecursiveEngine
	router      *router.Router
	observ      *observability.Manager
	traces      *tracing.Writer
}

// buildRuntimeDeps wires every package this CLI depends on into one
// struct, grounded on cfg. configPath is needed to resolve project.root
// relative to the directory containing the config file.
func buildRuntimeDeps(cfg *config.Config, configPath string) (*runtimeDeps, error) {
	projectRoot := cfg.ResolvedProjectRoot(configPath)

	store, err := graph.Open(cfg.Graph.Path)
	if err != nil {
		return nil, newConfigError("opening graph store %s: %v", cfg.Graph.Path, err)
	}

	creds := cfg.ProviderCredentials(cfg.RLM.Provider)
	var backend rlm.LLMBackend
	switch cfg.RLM.Provider {
	case "anthropic":
		anthropicCfg := rlm.NewAnthropicConfig(creds.APIKey)
		if creds.BaseURL != "" {
			anthropicCfg.BaseURL = creds.BaseURL
		}
		b, err := rlm.NewAnthropicBackend(anthropicCfg)
		if err != nil {
			store.Close()
			return nil, newConfigError("constructing anthropic backend: %v", err)
		}
		backend = b
	default:
		store.Close()
		return nil, newConfigError("rlm.provider %q has no backend implementation; only 'anthropic' is wired", cfg.RLM.Provider)
	}

	tokenManager, err := token.NewFileTokenManager(oauthTokenPath(projectRoot), cfg.OAuth.ToToken())
	if err != nil {
		store.Close()
		return nil, newConfigError("loading oauth tokens: %v", err)
	}

	ptConfig := passthrough.AnthropicOAuthConfig()
	if creds.BaseURL != "" {
		ptConfig = ptConfig.WithBaseURL(creds.BaseURL)
	}
	pt := passthrough.WithConfig(ptConfig).WithTokenManager(tokenManager)

	env := tools.BuildEnvironment(projectRoot, store, backend, cfg.RLM.Model)
	registry := env.Registry()

	engineDeps := rlm.NewEngineDeps(backend, env)
	engineConfig := rlm.DefaultEngineConfig().WithBudget(cfg.Budget.ToRLM()).WithWorkDir(projectRoot)
	engine := rlm.NewRecursiveEngine(engineDeps, engineConfig)

	var routerBackend rlm.LLMBackend = backend
	if cfg.Router.Provider != "" && cfg.Router.Provider != cfg.RLM.Provider {
		routerCreds := cfg.ProviderCredentials(cfg.Router.Provider)
		if cfg.Router.Provider == "anthropic" {
			routerAnthropicCfg := rlm.NewAnthropicConfig(routerCreds.APIKey)
			if routerCreds.BaseURL != "" {
				routerAnthropicCfg.BaseURL = routerCreds.BaseURL
			}
			if b, err := rlm.NewAnthropicBackend(routerAnthropicCfg); err == nil {
				routerBackend = b
			}
		}
	}
	r := router.New(cfg.RouterStrategy()).WithRouterBackend(routerBackend)

	obsManager, err := observability.NewManager(&observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true, Endpoint: "/metrics"},
	})
	if err != nil {
		store.Close()
		return nil, newConfigError("initializing observability: %v", err)
	}

	traceWriter, err := tracing.NewWriter(tracing.SessionWriterConfig(filepath.Join(filepath.Dir(cfg.Graph.Path), "traces.jsonl")))
	if err != nil {
		store.Close()
		return nil, newConfigError("opening trace writer: %v", err)
	}

	return &runtimeDeps{
		store:       store,
		backend:     backend,
		tokens:      tokenManager,
		passthrough: pt,
		registry:    registry,
		engine:      engine,
		router:      r,
		observ:      obsManager,
		traces:      traceWriter,
	}, nil
}

func (d *runtimeDeps) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.observ != nil {
		_ = d.observ.Shutdown(context.Background())
	}
	if d.traces != nil {
		_ = d.traces.Close()
	}
}

func oauthTokenPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".muninn", "oauth.json")
}

func logStartupSummary(logger *slog.Logger, cfg *config.Config, addr string) {
	logger.Info("muninn: proxy starting",
		"addr", addr,
		"router_strategy", cfg.Router.Strategy,
		"rlm_provider", cfg.RLM.Provider,
		"graph_path", cfg.Graph.Path,
	)
}

// Package config loads and validates Muninn's project configuration.
//
// Muninn is config-first for the pieces a runnable proxy needs at startup:
// where the indexed project lives, which router strategy to use, which
// provider backs the RLM engine, and the resource budget that bounds an
// exploration. Config is loaded from `.muninn/config.yaml` (or an explicit
// path), with `${VAR}` / `$VAR` references expanded against the process
// environment before the YAML is decoded.
//
// Example config:
//
//	project:
//	  root: .
//
//	graph:
//	  path: .muninn/graph.db
//	  extensions: [go, py, rs]
//
//	router:
//	  strategy: llm
//	  provider: anthropic
//	  model: claude-haiku-4-20250514
//
//	rlm:
//	  provider: anthropic
//	  model: claude-sonnet-4-20250514
//
//	budget:
//	  max_tokens: 100000
//	  max_depth: 8
//	  max_tool_calls: 40
//	  max_duration_secs: 120
//
//	providers:
//	  anthropic:
//	    api_key: ${ANTHROPIC_API_KEY}
//
//	server:
//	  port: 8787
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/router"
	"github.com/colliery-io/muninn/internal/token"
)

// DefaultConfigPath is where `muninn init` scaffolds a config and where
// every other subcommand looks unless overridden with --config.
const DefaultConfigPath = ".muninn/config.yaml"

// Config is the root configuration record. Every field recognized by the
// proxy is declared here; there is no passthrough bag for unknown keys.
type Config struct {
	Project   ProjectConfig             `yaml:"project"`
	Graph     GraphConfig               `yaml:"graph"`
	Router    RouterConfig              `yaml:"router"`
	RLM       RLMConfig                 `yaml:"rlm"`
	Budget    BudgetConfig              `yaml:"budget"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	OAuth     OAuthConfig               `yaml:"oauth"`
	Server    ServerConfig              `yaml:"server"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// OAuthConfig configures the refresh-grant request `muninn oauth` drives
// against the provider's token endpoint. Defaults match the public OAuth
// client Anthropic's own Claude Code CLI uses for MAX-plan sessions; any
// field can be overridden for a different provider or client registration.
type OAuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// ToToken converts the on-disk OAuth shape into token.OAuthConfig.
func (o OAuthConfig) ToToken() token.OAuthConfig {
	return token.OAuthConfig{TokenURL: o.TokenURL, ClientID: o.ClientID, ClientSecret: o.ClientSecret}
}

// ProjectConfig locates the indexed project on disk.
type ProjectConfig struct {
	// Root is relative or absolute; relative paths are resolved against
	// the directory containing the `.muninn` directory.
	Root string `yaml:"root"`
}

// GraphConfig configures the code-graph index.
type GraphConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
}

// RouterConfig configures request routing between passthrough and RLM.
type RouterConfig struct {
	Strategy string `yaml:"strategy"`
	Enabled  *bool  `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// RLMConfig configures the backend used for RLM exploration itself.
type RLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// BudgetConfig bounds a single RLM exploration. Fields are pointers so an
// absent key in YAML is distinguishable from an explicit zero.
type BudgetConfig struct {
	MaxTokens       *uint64 `yaml:"max_tokens"`
	MaxDepth        *uint32 `yaml:"max_depth"`
	MaxToolCalls    *uint32 `yaml:"max_tool_calls"`
	MaxDurationSecs *uint64 `yaml:"max_duration_secs"`
}

// ToRLM converts the on-disk budget shape into rlm.BudgetConfig, filling
// in the engine's own defaults for any field left unset.
func (b BudgetConfig) ToRLM() rlm.BudgetConfig {
	cfg := rlm.DefaultBudgetConfig()
	if b.MaxTokens != nil {
		cfg.MaxTokens = b.MaxTokens
	}
	if b.MaxDepth != nil {
		cfg.MaxDepth = b.MaxDepth
	}
	if b.MaxToolCalls != nil {
		cfg.MaxToolCalls = b.MaxToolCalls
	}
	if b.MaxDurationSecs != nil {
		cfg.MaxDurationSec = b.MaxDurationSecs
	}
	return cfg
}

// ProviderConfig carries per-provider credentials and endpoint overrides.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig configures the proxy's own HTTP listener. Not part of
// spec.md's wire-protocol enumeration: a runnable binary needs a bind
// address and a graceful-shutdown window regardless.
type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	ShutdownGraceSecs int    `yaml:"shutdown_grace_secs"`
}

// LoggingConfig configures process-level structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvString resolves ${VAR}, ${VAR:-default}, and $VAR references
// in s against the process environment. Unset braced/simple references
// expand to the empty string, matching shell semantics.
func expandEnvString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})

	return s
}

// expandEnvVars walks a decoded YAML map recursively, expanding every
// string leaf through expandEnvString.
func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandValue(item)
		}
		return result
	default:
		return val
	}
}

// decodeConfig decodes a raw map (already env-expanded) into a Config
// struct via mapstructure, reusing the "yaml" struct tags already present
// on Config's fields rather than duplicating them as "mapstructure" tags.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("creating config decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// Load reads and decodes the config file at path, expanding environment
// references, applying defaults, and validating the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var rawMap map[string]any
	if err := yaml.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	rawMap = expandEnvVars(rawMap)

	var cfg Config
	if err := decodeConfig(rawMap, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// SetDefaults fills in every field a runnable proxy needs that the config
// file is allowed to omit.
func (c *Config) SetDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if c.Graph.Path == "" {
		c.Graph.Path = ".muninn/graph.db"
	}
	if len(c.Graph.Extensions) == 0 {
		c.Graph.Extensions = []string{"go", "py", "rs", "c", "cpp", "h", "hpp"}
	}

	if c.Router.Strategy == "" {
		c.Router.Strategy = string(router.StrategyLlm)
	}
	if c.Router.Enabled == nil {
		enabled := true
		c.Router.Enabled = &enabled
	}
	if c.Router.Provider == "" {
		c.Router.Provider = "anthropic"
	}

	if c.RLM.Provider == "" {
		c.RLM.Provider = "anthropic"
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}

	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = "https://console.anthropic.com/v1/oauth/token"
	}
	if c.OAuth.ClientID == "" {
		c.OAuth.ClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8787
	}
	if c.Server.ShutdownGraceSecs == 0 {
		c.Server.ShutdownGraceSecs = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

var validStrategies = map[string]bool{
	string(router.StrategyAlwaysPassthrough): true,
	string(router.StrategyAlwaysRlm):         true,
	string(router.StrategyLlm):               true,
	string(router.StrategyHeuristic):         true,
	string(router.StrategyHybrid):            true,
}

var validProviders = map[string]bool{
	"groq": true, "anthropic": true, "ollama": true, "local": true, "openai": true,
}

// Validate checks the decoded config for internal consistency. It does
// not touch the filesystem or network: existence of the project root or
// reachability of a provider is checked lazily at the point of use.
func (c *Config) Validate() error {
	var errs []string

	if !validStrategies[c.Router.Strategy] {
		errs = append(errs, fmt.Sprintf("router.strategy: unrecognized value %q", c.Router.Strategy))
	}
	if c.Router.Provider != "" && !validProviders[c.Router.Provider] {
		errs = append(errs, fmt.Sprintf("router.provider: unrecognized value %q", c.Router.Provider))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: %d is out of range", c.Server.Port))
	}
	if c.Server.ShutdownGraceSecs < 0 {
		errs = append(errs, "server.shutdown_grace_secs: must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: unrecognized value %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: unrecognized value %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolvedProjectRoot returns Project.Root resolved to an absolute path,
// relative to the directory containing the config file at configPath.
func (c *Config) ResolvedProjectRoot(configPath string) string {
	if filepath.IsAbs(c.Project.Root) {
		return filepath.Clean(c.Project.Root)
	}
	base := filepath.Dir(filepath.Dir(configPath)) // configPath is <root>/.muninn/config.yaml
	return filepath.Clean(filepath.Join(base, c.Project.Root))
}

// RouterStrategy returns the decoded router strategy as a router.Strategy.
func (c *Config) RouterStrategy() router.Strategy {
	return router.Strategy(c.Router.Strategy)
}

// ProviderCredentials looks up the configured API key and base URL for a
// named provider, returning the zero value if the provider has no section.
func (c *Config) ProviderCredentials(name string) ProviderConfig {
	return c.Providers[name]
}

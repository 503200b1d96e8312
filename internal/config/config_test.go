package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	muninnDir := filepath.Join(dir, ".muninn")
	require.NoError(t, os.MkdirAll(muninnDir, 0o755))
	path := filepath.Join(muninnDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  root: .\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ".muninn/graph.db", cfg.Graph.Path)
	require.Equal(t, "llm", cfg.Router.Strategy)
	require.True(t, *cfg.Router.Enabled)
	require.Equal(t, "anthropic", cfg.RLM.Provider)
	require.Equal(t, 8787, cfg.Server.Port)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 10, cfg.Server.ShutdownGraceSecs)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MUNINN_TEST_KEY", "sk-test-123")
	dir := t.TempDir()
	path := writeConfig(t, dir, "providers:\n  anthropic:\n    api_key: ${MUNINN_TEST_KEY}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.Providers["anthropic"].APIKey)
}

func TestLoad_EnvVarWithDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "providers:\n  anthropic:\n    base_url: ${MUNINN_UNSET_VAR:-https://fallback.example.com}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://fallback.example.com", cfg.Providers["anthropic"].BaseURL)
}

func TestLoad_UnknownStrategyFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "router:\n  strategy: nonsense\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestBudgetConfig_ToRLM_OverridesOnlySetFields(t *testing.T) {
	maxTokens := uint64(5000)
	b := BudgetConfig{MaxTokens: &maxTokens}

	rlmCfg := b.ToRLM()
	require.Equal(t, uint64(5000), *rlmCfg.MaxTokens)
	require.NotNil(t, rlmCfg.MaxDepth)
}

func TestConfig_ResolvedProjectRoot_Relative(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  root: .\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	resolved := cfg.ResolvedProjectRoot(path)
	require.Equal(t, filepath.Clean(dir), resolved)
}

func TestConfig_ResolvedProjectRoot_Absolute(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  root: /abs/path\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/abs/path", cfg.ResolvedProjectRoot(path))
}

func TestConfig_Validate_RejectsBadPort(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Server.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfig_Validate_RejectsBadLoggingLevel(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
}

func TestExpandEnvString_NoDollarSignIsNoop(t *testing.T) {
	require.Equal(t, "plain string", expandEnvString("plain string"))
}

func TestExpandEnvString_SimpleForm(t *testing.T) {
	t.Setenv("MUNINN_SIMPLE", "value")
	require.Equal(t, "prefix-value", expandEnvString("prefix-$MUNINN_SIMPLE"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"RECON_LLM_PROVIDER", "RECON_LLM_MODEL", "RECON_LLM_BASE_URL",
		"RECON_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"RECON_MAX_ITERATIONS", "RECON_MATCH_THRESHOLD", "RECON_SANDBOX_TIMEOUT",
		"RECON_DEBUG",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.95, cfg.Agent.MatchThreshold)
	assert.Equal(t, 10, cfg.Agent.PreviewRows)
	assert.Equal(t, int64(8), cfg.Agent.ConcurrentSessions)

	d, err := cfg.Sandbox.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Agent, cfg.Agent)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "reconagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
  api_key: file-key
  model: gemini-2.5-pro
agent:
  max_iterations: 8
  match_threshold: 0.9
sandbox:
  timeout: 10s
logging:
  debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.9, cfg.Agent.MatchThreshold)
	assert.True(t, cfg.Logging.Debug)

	d, err := cfg.Sandbox.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "reconagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0o644))

	t.Setenv("RECON_LLM_MODEL", "from-env")
	t.Setenv("RECON_MAX_ITERATIONS", "3")
	t.Setenv("RECON_MATCH_THRESHOLD", "0.8")
	t.Setenv("RECON_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.8, cfg.Agent.MatchThreshold)
	assert.True(t, cfg.Logging.Debug)
}

func TestLoad_ProviderConventionalKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "or-key", cfg.LLM.APIKey)

	// An explicit key wins over the conventional ones.
	t.Setenv("RECON_API_KEY", "explicit")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestLoad_IgnoresInvalidEnvValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECON_MAX_ITERATIONS", "zero")
	t.Setenv("RECON_MATCH_THRESHOLD", "2.0")
	t.Setenv("RECON_SANDBOX_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.95, cfg.Agent.MatchThreshold)
	assert.Equal(t, "30s", cfg.Sandbox.Timeout)
}

func TestLoad_ValidationErrors(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")

	require.NoError(t, os.WriteFile(path, []byte("agent:\n  max_iterations: 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  timeout: sometime\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

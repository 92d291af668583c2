// Package config holds the agent's configuration: YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all reconciliation-agent configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language-model collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openrouter, openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// AgentConfig configures the reconciliation loop.
type AgentConfig struct {
	MaxIterations      int     `yaml:"max_iterations"`
	MatchThreshold     float64 `yaml:"match_threshold"`
	PreviewRows        int     `yaml:"preview_rows"`
	ConcurrentSessions int64   `yaml:"concurrent_sessions"`
}

// SandboxConfig configures generated-code execution.
type SandboxConfig struct {
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openrouter",
			Model:    "anthropic/claude-3.5-sonnet",
			Timeout:  "120s",
		},
		Agent: AgentConfig{
			MaxIterations:      5,
			MatchThreshold:     0.95,
			PreviewRows:        10,
			ConcurrentSessions: 8,
		},
		Sandbox: SandboxConfig{
			Timeout: "30s",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides. A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.validate()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECON_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("RECON_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RECON_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("RECON_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.APIKey == "" {
		// Provider-conventional variables, checked in provider order.
		for _, name := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				c.LLM.APIKey = v
				break
			}
		}
	}
	if v := os.Getenv("RECON_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("RECON_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			c.Agent.MatchThreshold = f
		}
	}
	if v := os.Getenv("RECON_SANDBOX_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Sandbox.Timeout = v
		}
	}
	if v := os.Getenv("RECON_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
}

func (c *Config) validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be >= 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MatchThreshold <= 0 || c.Agent.MatchThreshold > 1 {
		return fmt.Errorf("agent.match_threshold must be in (0, 1], got %v", c.Agent.MatchThreshold)
	}
	if _, err := c.Sandbox.TimeoutDuration(); err != nil {
		return fmt.Errorf("sandbox.timeout: %w", err)
	}
	if _, err := c.LLM.TimeoutDuration(); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	return nil
}

// TimeoutDuration parses the sandbox timeout; empty means the default.
func (s SandboxConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(s.Timeout)
}

// TimeoutDuration parses the LLM request timeout; empty means the default.
func (l LLMConfig) TimeoutDuration() (time.Duration, error) {
	if l.Timeout == "" {
		return 120 * time.Second, nil
	}
	return time.ParseDuration(l.Timeout)
}

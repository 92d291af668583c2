package llm

import (
	"context"
	"fmt"

	"github.com/WeiKhjan/reconciliation-agent/internal/config"
)

// NewFromConfig builds the configured provider.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no LLM API key configured")
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid llm timeout: %w", err)
	}

	switch cfg.Provider {
	case "", "openrouter":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		oc.Timeout = timeout
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		return NewOpenAIClient(oc), nil
	case "openai":
		oc := OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: "https://api.openai.com/v1",
			Model:   cfg.Model,
			Timeout: timeout,
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		return NewOpenAIClient(oc), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want openrouter, openai, or gemini)", cfg.Provider)
	}
}

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeiKhjan/reconciliation-agent/internal/config"
)

func TestNewFromConfig_RequiresAPIKey(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.LLMConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewFromConfig_OpenRouterDefault(t *testing.T) {
	client, err := NewFromConfig(context.Background(), config.LLMConfig{APIKey: "k"})
	require.NoError(t, err)

	oc, ok := client.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "https://openrouter.ai/api/v1", oc.baseURL)
}

func TestNewFromConfig_OpenAI(t *testing.T) {
	client, err := NewFromConfig(context.Background(), config.LLMConfig{
		Provider: "openai",
		APIKey:   "k",
		Model:    "gpt-4o",
	})
	require.NoError(t, err)

	oc, ok := client.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "https://api.openai.com/v1", oc.baseURL)
	assert.Equal(t, "gpt-4o", oc.model)
}

func TestNewFromConfig_BaseURLOverride(t *testing.T) {
	client, err := NewFromConfig(context.Background(), config.LLMConfig{
		APIKey:  "k",
		BaseURL: "http://localhost:8080/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", client.(*OpenAIClient).baseURL)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.LLMConfig{
		Provider: "llama-farm",
		APIKey:   "k",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama-farm")
}

func TestNewFromConfig_InvalidTimeout(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.LLMConfig{
		APIKey:  "k",
		Timeout: "forever",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

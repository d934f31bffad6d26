package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/llm"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, ".triage", cfg.Data.Dir)
	assert.True(t, cfg.Data.Persist)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"port", "server.port", 0},
		{"provider", "llm.provider", "cohere"},
		{"workers", "pipeline.workers", 0},
		{"temperature", "llm.temperature", 3.5},
		{"log format", "log.format", "xml"},
		{"base url", "llm.baseURL", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.ErrorContains(t, err, "configuration validation failed")
		})
	}
}

func TestPaths(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(".triage", "outputs"), cfg.OutputPath())
	assert.Equal(t, filepath.Join(".triage", "policies"), cfg.PoliciesPath())
	assert.Equal(t, filepath.Join(".triage", "prompts.yaml"), cfg.PromptsPath())

	cfg.Data.OutputDir = "/srv/plans"
	cfg.Pipeline.PoliciesDir = "/etc/triage/policies"
	assert.Equal(t, "/srv/plans", cfg.OutputPath())
	assert.Equal(t, "/etc/triage/policies", cfg.PoliciesPath())
}

func TestLoadLLMConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", " sk-env ")
	t.Setenv("AWS_BEARER_TOKEN_BEDROCK", "br-token")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	lc, err := cfg.LoadLLMConfig()
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, lc.Provider)
	assert.Equal(t, llm.DefaultModelForProvider(llm.ProviderOpenAI), lc.Model)
	assert.Equal(t, "sk-env", lc.APIKey)
	assert.Equal(t, 800, lc.MaxTokens)

	cfg.LLM.APIKeys = map[string]string{"openai": "sk-config"}
	lc, err = cfg.LoadLLMConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-config", lc.APIKey)

	cfg.LLM.Provider = "bedrock"
	cfg.LLM.Bedrock.Region = "eu-central-1"
	lc, err = cfg.LoadLLMConfig()
	require.NoError(t, err)
	assert.Equal(t, "br-token", lc.APIKey)
	assert.Equal(t, "eu-central-1", lc.BedrockRegion)

	cfg.LLM.Provider = "ollama"
	lc, err = cfg.LoadLLMConfig()
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultOllamaURL, lc.BaseURL)

	cfg.LLM.Provider = "nope"
	_, err = cfg.LoadLLMConfig()
	assert.Error(t, err)
}

func TestGeminiKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	cfg := AppConfig{}
	assert.Equal(t, "g-key", cfg.ResolveAPIKey(llm.ProviderGemini))
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/psychon7/Triage-AI/internal/llm"
)

// LLMSystemPrompt frames every stage call.
const LLMSystemPrompt = "You are part of a software planning team. Follow the instructions exactly and answer in markdown unless asked for JSON."

// LoadLLMConfig resolves the generation settings. Precedence: explicit
// config, then provider environment variables, then defaults. A missing API
// key is not an error here; building the model reports it.
func (c AppConfig) LoadLLMConfig() (llm.Config, error) {
	provider := c.LLM.Provider
	if provider == "" {
		provider = string(llm.DefaultProvider)
	}
	p, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	model := c.LLM.Model
	if model == "" {
		model = llm.DefaultModelForProvider(p)
	}

	baseURL := c.LLM.BaseURL
	if baseURL == "" && p == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	return llm.Config{
		Provider:      p,
		Model:         model,
		APIKey:        c.ResolveAPIKey(p),
		BaseURL:       baseURL,
		BedrockRegion: c.LLM.Bedrock.Region,
		Temperature:   float32(c.LLM.Temperature),
		MaxTokens:     c.LLM.MaxTokens,
		Timeout:       c.LLM.Timeout,
		SystemPrompt:  LLMSystemPrompt,
	}, nil
}

// ResolveAPIKey returns llm.apiKeys.<provider> if set, else the provider's env var.
func (c AppConfig) ResolveAPIKey(p llm.Provider) string {
	if key := strings.TrimSpace(c.LLM.APIKeys[string(p)]); key != "" {
		return key
	}
	return providerEnvKey(p)
}

func providerEnvKey(p llm.Provider) string {
	switch p {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	case llm.ProviderBedrock:
		return strings.TrimSpace(os.Getenv("AWS_BEARER_TOKEN_BEDROCK"))
	default:
		return ""
	}
}

package llm

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	// ProviderBedrock is the AWS Bedrock OpenAI-compatible runtime.
	ProviderBedrock Provider = "bedrock"
)

// DefaultProvider is used when none is configured.
const DefaultProvider = ProviderOpenAI

// DefaultOllamaURL is the default URL for a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// DefaultBedrockRegion is used when the Bedrock region is not configured.
const DefaultBedrockRegion = "us-east-1"

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800
)

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderOllama:    "llama3.2",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderBedrock:   "openai.gpt-oss-120b-1:0",
}

// DefaultModelForProvider returns the model used when none is configured.
func DefaultModelForProvider(p Provider) string {
	return defaultModels[p]
}

// BedrockBaseURL returns the OpenAI-compatible endpoint for a region.
func BedrockBaseURL(region string) string {
	if region == "" {
		region = DefaultBedrockRegion
	}
	return "https://bedrock-runtime." + region + ".amazonaws.com/openai/v1"
}

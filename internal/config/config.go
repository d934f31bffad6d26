// Package config holds the application configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the root configuration, unmarshalled from viper.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DataConfig configures where state and artifacts live.
type DataConfig struct {
	Dir       string `mapstructure:"dir" validate:"required"`
	OutputDir string `mapstructure:"outputDir" validate:"required"`
	Persist   bool   `mapstructure:"persist"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	Workers     int    `mapstructure:"workers" validate:"min=1,max=64"`
	PromptsFile string `mapstructure:"promptsFile"`
	PoliciesDir string `mapstructure:"policiesDir"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Provider    string            `mapstructure:"provider" validate:"required,oneof=openai ollama anthropic gemini bedrock"`
	Model       string            `mapstructure:"model"`
	BaseURL     string            `mapstructure:"baseURL" validate:"omitempty,url"`
	APIKeys     map[string]string `mapstructure:"apiKeys"`
	Temperature float64           `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int               `mapstructure:"maxTokens" validate:"min=1"`
	Timeout     time.Duration     `mapstructure:"timeout" validate:"min=0"`
	Bedrock     BedrockConfig     `mapstructure:"bedrock"`
}

// BedrockConfig configures the AWS Bedrock runtime endpoint.
type BedrockConfig struct {
	Region string `mapstructure:"region"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig configures anonymous usage events.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("data.dir", DefaultDataDir)
	v.SetDefault("data.outputDir", DefaultOutputDir)
	v.SetDefault("data.persist", true)
	v.SetDefault("pipeline.workers", DefaultWorkers)
	v.SetDefault("pipeline.promptsFile", "")
	v.SetDefault("pipeline.policiesDir", "")
	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.maxTokens", DefaultMaxTokens)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.bedrock.region", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "https://us.i.posthog.com")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and reports the failing fields.
func Validate(cfg AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msg := "configuration validation failed:"
			for _, fe := range verrs {
				msg += fmt.Sprintf("\n  - %s: failed on '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("configuration validation error: %w", err)
	}
	return nil
}

package config

import "time"

// Defaults shared by the CLI and the server.
const (
	DefaultPort        = 5001
	DefaultDataDir     = ".triage"
	DefaultOutputDir   = "outputs"
	DefaultWorkers     = 4
	DefaultProvider    = "openai"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800
	DefaultLLMTimeout  = 60 * time.Second
)

// ConfigFileName is the config file name without extension.
const ConfigFileName = ".triage"

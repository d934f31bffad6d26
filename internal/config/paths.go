package config

import (
	"os"
	"path/filepath"

	"github.com/psychon7/Triage-AI/internal/policy"
)

// GetGlobalConfigDir returns ~/.triage. A variable so tests can override it.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDataDir), nil
}

// OutputPath resolves the artifact directory; relative paths live under the data dir.
func (c AppConfig) OutputPath() string {
	if filepath.IsAbs(c.Data.OutputDir) {
		return c.Data.OutputDir
	}
	return filepath.Join(c.Data.Dir, c.Data.OutputDir)
}

// PoliciesPath resolves the Rego policies directory.
func (c AppConfig) PoliciesPath() string {
	if c.Pipeline.PoliciesDir != "" {
		return c.Pipeline.PoliciesDir
	}
	return filepath.Join(c.Data.Dir, policy.DefaultPoliciesDir)
}

// PromptsPath resolves the prompt override file.
func (c AppConfig) PromptsPath() string {
	if c.Pipeline.PromptsFile != "" {
		return c.Pipeline.PromptsFile
	}
	return filepath.Join(c.Data.Dir, "prompts.yaml")
}

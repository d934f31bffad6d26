package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// InstallFileName holds the anonymous install ID inside the data dir.
const InstallFileName = "telemetry.json"

type installFile struct {
	AnonymousID string `json:"anonymous_id"`
}

// InstallID returns the anonymous ID stored under dir, creating it on first
// use. The ID is a random UUID and is never derived from the host or user.
func InstallID(dir string) (string, error) {
	path := filepath.Join(dir, InstallFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var f installFile
		if err := json.Unmarshal(data, &f); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		if f.AnonymousID != "" {
			return f.AnonymousID, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	f := installFile{AnonymousID: uuid.New().String()}
	data, err = json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return f.AnonymousID, nil
}

// Package prompts provides per-stage model instructions with optional
// operator overrides loaded from a YAML file.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of a prompt override file.
type overrideFile struct {
	Stages map[string]StagePrompt `yaml:"stages"`
}

// Library resolves stage prompts: built-in defaults overlaid with overrides.
type Library struct {
	fs   afero.Fs
	path string

	mu        sync.RWMutex
	overrides map[string]StagePrompt
}

// NewLibrary creates a library reading overrides from path on fs.
// An empty path means defaults only.
func NewLibrary(fs afero.Fs, path string) *Library {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Library{
		fs:        fs,
		path:      path,
		overrides: map[string]StagePrompt{},
	}
}

// Path returns the override file path.
func (l *Library) Path() string { return l.path }

// Load (re)reads the override file. A missing file clears overrides.
func (l *Library) Load() error {
	if l.path == "" {
		return nil
	}

	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.replace(map[string]StagePrompt{})
			return nil
		}
		return fmt.Errorf("read prompt overrides %s: %w", l.path, err)
	}

	overrides, err := ParseOverrides(data)
	if err != nil {
		return fmt.Errorf("parse prompt overrides %s: %w", l.path, err)
	}
	l.replace(overrides)
	return nil
}

// ParseOverrides decodes an override document and rejects unknown stage IDs.
func ParseOverrides(data []byte) (map[string]StagePrompt, error) {
	var doc overrideFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]StagePrompt, len(doc.Stages))
	for stage, p := range doc.Stages {
		if _, ok := defaultPrompts[stage]; !ok {
			return nil, fmt.Errorf("unknown stage %q", stage)
		}
		out[stage] = p
	}
	return out, nil
}

func (l *Library) replace(overrides map[string]StagePrompt) {
	l.mu.Lock()
	l.overrides = overrides
	l.mu.Unlock()
}

// StagePrompt returns the effective prompt for a stage ID.
func (l *Library) StagePrompt(stage string) StagePrompt {
	base := defaultPrompts[stage]
	l.mu.RLock()
	o, ok := l.overrides[stage]
	l.mu.RUnlock()
	if !ok {
		return base
	}
	return base.merge(o)
}

// Watch reloads the override file whenever it changes, until ctx is done.
// It watches the parent directory so editors that replace the file are seen.
func (l *Library) Watch(ctx context.Context, logger *slog.Logger) error {
	if l.path == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		target := filepath.Clean(l.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.Load(); err != nil {
					logger.Warn("prompt reload failed", "path", l.path, "error", err)
					continue
				}
				logger.Info("prompt overrides reloaded", "path", l.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("prompt watcher error", "error", err)
			}
		}
	}()
	return nil
}

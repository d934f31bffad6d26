package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Watch recompiles the policies whenever a .rego file in the policies
// directory changes, until ctx is done. A missing directory is not watched.
func (e *Engine) Watch(ctx context.Context, logger *slog.Logger) error {
	if e.dir == "" {
		return nil
	}
	if ok, err := afero.DirExists(e.fs, e.dir); err != nil || !ok {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(e.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", e.dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".rego" || strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := e.Reload(ctx); err != nil {
					logger.Warn("policy reload failed", "dir", e.dir, "error", err)
					continue
				}
				logger.Info("policies reloaded", "dir", e.dir, "policies", e.PolicyNames())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher error", "error", err)
			}
		}
	}()
	return nil
}

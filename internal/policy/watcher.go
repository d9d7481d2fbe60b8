package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves the policy loaded from a YAML file and reloads it when the file changes.
// A reload that fails to parse keeps the previous policy.
type Watcher struct {
	path    string
	base    Policy
	logger  *slog.Logger
	current atomic.Pointer[Policy]
}

func NewWatcher(path string, base Policy, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loaded, err := LoadFile(path, base)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: filepath.Clean(path), base: base, logger: logger}
	w.current.Store(&loaded)
	return w, nil
}

func (w *Watcher) Current() Policy {
	return *w.current.Load()
}

func (w *Watcher) Reload() error {
	loaded, err := LoadFile(w.path, w.base)
	if err != nil {
		return err
	}
	w.current.Store(&loaded)
	return nil
}

// Run watches the directory holding the policy file until ctx is done. Editors often replace
// files by rename, so the directory is watched rather than the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch policy dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("policy_reload_failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("policy_reloaded", "path", w.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("policy_watch_error", "error", err)
		}
	}
}

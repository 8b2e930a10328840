package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 200 * time.Millisecond

// Watch calls fn after any of paths is written, created or replaced, until
// ctx is done. Parent directories are watched so that editors that save by
// renaming are noticed too. fn runs on the watcher goroutine.
func Watch(ctx context.Context, paths []string, fn func()) error {
	if len(paths) == 0 {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go watchLoop(ctx, w, targets, fn)
	return nil
}

func watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]bool, fn func()) {
	defer w.Close()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				reload = time.After(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		case <-reload:
			reload = nil
			fn()
		}
	}
}

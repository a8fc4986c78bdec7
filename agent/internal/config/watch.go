package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file at path whenever it is rewritten
// and calls apply with the new Config. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: config
// management tools save atomically (write a temp file, rename it over the
// target), which replaces the inode a file-level watch would be bound to.
// Events for other files in the directory are ignored.
//
// A rewrite that fails to parse or validate is logged and dropped, and a
// rewrite that decodes to the currently active settings is skipped, so
// apply only ever sees valid, changed configurations.
func Watch(ctx context.Context, path string, apply func(*Config)) error {
	current, err := Load(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	slog.Info("config: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			// An atomic save surfaces as Create when the temp file is
			// renamed onto the target; an in-place save as Write.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			next, err := Load(path)
			if err != nil {
				slog.Error("config: rejecting rewrite, keeping active settings",
					"path", target, "err", err)
				continue
			}
			if reflect.DeepEqual(current, next) {
				continue
			}

			slog.Info("config: reloaded", "path", target)
			current = next
			apply(next)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

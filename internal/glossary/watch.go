// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups the burst of events an editor emits for one save.
var watchDebounce = 300 * time.Millisecond

// Watch syncs dir once and then re-syncs each glossary file whenever it is
// created or written, until ctx is cancelled. Removing a file does not
// remove its entries. onSync, when non-nil, is called after every
// re-imported file.
func (s *Store) Watch(ctx context.Context, dir string, w io.Writer, onSync func(path string, entries int)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if _, err := s.SyncDir(ctx, dir, w); err != nil {
		return err
	}
	fmt.Fprintf(w, "watching %s\n", dir)

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if path, ok := syncTarget(event); ok {
				pending[path] = true
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("glossary watcher error", "dir", dir, "error", err)

		case <-timer.C:
			for path := range pending {
				delete(pending, path)
				n, changed, err := s.SyncFile(ctx, path)
				switch {
				case err != nil:
					fmt.Fprintf(w, "failed  %s: %v\n", path, err)
				case changed:
					fmt.Fprintf(w, "imported %s (%d entries)\n", path, n)
					if onSync != nil {
						onSync(path, n)
					}
				}
			}
		}
	}
}

// syncTarget returns the file an event should re-import. Only creates and
// writes of regular glossary files qualify.
func syncTarget(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !IsGlossaryFile(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return event.Name, true
}

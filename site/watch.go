package site

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const rebuildDebounce = 500 * time.Millisecond

// Watcher rebuilds the site when content, templates, or static assets
// change on disk. Intended for local development alongside serve mode.
type Watcher struct {
	svc    *Service
	logger *slog.Logger
	dirs   []string
}

// NewWatcher watches the given directory trees. Missing directories are
// skipped.
func NewWatcher(svc *Service, logger *slog.Logger, dirs ...string) *Watcher {
	return &Watcher{svc: svc, logger: logger, dirs: dirs}
}

// Run blocks until the context is cancelled, rebuilding after changes with
// a short debounce so editor save bursts trigger one build.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range w.dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := addRecursive(watcher, dir); err != nil {
			w.logger.Warn("watch", "dir", dir, "error", err)
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// New directories under a watched tree are not watched
			// automatically.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						w.logger.Warn("watch add", "dir", event.Name, "error", err)
					}
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(rebuildDebounce, func() {
				w.logger.Info("change detected, rebuilding", "path", event.Name)
				if err := w.svc.Rebuild(ctx); err != nil {
					w.logger.Error("rebuild", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher", "error", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk,
// typically after the admin surface saves a new version. A changed file
// is re-loaded and validated before the apply callback runs; a rejected
// document is logged and the running one stays untouched.
type Watcher struct {
	path   string
	loader *Loader
	apply  func(*LoadResult)
	logger *slog.Logger
}

// NewWatcher creates a Watcher. apply is invoked with each successfully
// loaded result.
func NewWatcher(path string, loader *Loader, apply func(*LoadResult), logger *slog.Logger) *Watcher {
	return &Watcher{path: path, loader: loader, apply: apply, logger: logger}
}

// Run watches until the context is cancelled. The parent directory is
// watched rather than the file itself: editors and atomic writers replace
// the file, which would otherwise drop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	// Debounce: editors emit several events per save, and a reload midway
	// through a partial write must not win.
	var timerMu sync.Mutex
	var timer *time.Timer
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			result, err := w.loader.Load(w.path)
			if err != nil {
				w.logger.Warn("config reload rejected; keeping active document",
					slog.String("path", w.path),
					slog.String("error", err.Error()),
				)
				return
			}
			w.logger.Info("config reloaded",
				slog.String("path", w.path),
				slog.Bool("migrated", result.Migrated),
				slog.Int("warnings", len(result.Warnings)),
			)
			w.apply(result)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

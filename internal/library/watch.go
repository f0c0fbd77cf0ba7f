package library

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"asset-library/internal/logging"
	"asset-library/internal/metrics"
)

// watchDebounce is how long the watcher waits after the last filesystem
// event before rescanning. Batch copies into the library fire hundreds
// of events; one rescan at the end is enough.
const watchDebounce = 2 * time.Second

// Watch monitors the library root and the auto-import folder, running a
// debounced rescan (and auto-import sweep) whenever either changes.
// Blocks until ctx is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.libraryDir); err != nil {
		return err
	}
	logging.Info("Watching library directory %s", l.libraryDir)

	watchingAuto := false
	if l.autoDir != "" {
		if err := watcher.Add(l.autoDir); err != nil {
			logging.Warn("Cannot watch auto-import dir %s: %v", l.autoDir, err)
		} else {
			watchingAuto = true
			logging.Info("Watching auto-import directory %s", l.autoDir)
		}
	}

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		autoHit bool
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(watchDebounce)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if l.ignoreEvent(event) {
				continue
			}
			logging.Debug("Watcher event: %s", event)
			metrics.LibraryWatcherEventsTotal.WithLabelValues(strings.ToLower(event.Op.String())).Inc()
			if watchingAuto && strings.HasPrefix(event.Name, l.autoDir+string(filepath.Separator)) {
				autoHit = true
			}
			schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.LibraryWatcherErrors.Inc()

		case <-timerC:
			timerC = nil
			timer = nil
			if autoHit {
				autoHit = false
				if err := l.UpdateAuto(ctx); err != nil {
					logging.Error("Auto-import sweep failed: %v", err)
				}
			}
			if err := l.UpdateLibrary(ctx); err != nil {
				logging.Error("Library rescan failed: %v", err)
			}
		}
	}
}

// ignoreEvent filters out noise: chmod-only events and the sidecar
// writes the library itself performs, which would otherwise cause
// rescan loops.
func (l *Library) ignoreEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	// Temp files from atomic sidecar writes.
	if strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}

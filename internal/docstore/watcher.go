package docstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-observed document change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, key string)

// Watch starts an fsnotify watcher on the store root and reports .json
// document changes until ctx is cancelled. Externally edited drafts are
// picked up this way so in-memory sessions can be reloaded.
//
// Rename events fire on the old path only, so they trigger a short
// debounced reconciliation pass against the directory listing.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	known := make(map[string]struct{})
	if entries, listErr := os.ReadDir(root); listErr == nil {
		for _, e := range entries {
			if k, ok := docKey(e.Name()); ok {
				known[k] = struct{}{}
			}
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(root, known, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			key, isDoc := docKey(filepath.Base(ev.Name))
			if !isDoc {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if _, seen := known[key]; !seen {
					kind = "created"
				}
				known[key] = struct{}{}
				logger.Debug("watcher: changed", slog.String("key", key), slog.String("op", kind))
				if cb != nil {
					cb(kind, key)
				}

			case ev.Op&fsnotify.Remove != 0:
				delete(known, key)
				logger.Debug("watcher: removed", slog.String("key", key))
				if cb != nil {
					cb("deleted", key)
				}

			case ev.Op&fsnotify.Rename != 0:
				delete(known, key)
				if cb != nil {
					cb("deleted", key)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares the known key set against the directory and emits
// events for documents that appeared or vanished without a clean event.
func reconcile(root string, known map[string]struct{}, logger *slog.Logger, cb EventCallback) {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if k, ok := docKey(e.Name()); ok {
			disk[k] = struct{}{}
		}
	}

	for k := range known {
		if _, ok := disk[k]; !ok {
			delete(known, k)
			logger.Debug("reconcile: removed stale", slog.String("key", k))
			if cb != nil {
				cb("deleted", k)
			}
		}
	}
	for k := range disk {
		if _, ok := known[k]; !ok {
			known[k] = struct{}{}
			logger.Debug("reconcile: picked up", slog.String("key", k))
			if cb != nil {
				cb("created", k)
			}
		}
	}
}

// docKey maps a file name to a document key, rejecting temp files and
// anything that is not a .json document.
func docKey(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
		return "", false
	}
	return strings.TrimSuffix(name, docExt), true
}

package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"docchat/internal/extract"
)

// watchSettle is how long a file must stay quiet before it is re-extracted.
const watchSettle = 100 * time.Millisecond

// Watcher refreshes the store when files are created or rewritten in its
// directory by something other than Put. Bursts of events for one file are
// collapsed, and files whose cached text is newer than their mtime (the ones
// Put just wrote) are left alone.
type Watcher struct {
	store  *Store
	logger *zap.Logger
	settle time.Duration
}

func NewWatcher(store *Store, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{store: store, logger: logger, settle: watchSettle}
}

// Run blocks until ctx is cancelled or the underlying watcher fails to start.
// ready, when non-nil, is closed once the directory is being watched.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.store.Dir(), err)
	}
	if ready != nil {
		close(ready)
	}
	w.logger.Info("watching documents dir", zap.String("dir", w.store.Dir()))

	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !extract.Supported(name) {
				continue
			}
			pending[name] = time.Now()
		case now := <-tick.C:
			for name, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, name)
				w.refresh(ctx, name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("documents watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) refresh(ctx context.Context, name string) {
	ran, err := w.store.RefreshIfChanged(ctx, name)
	if err != nil {
		w.logger.Warn("refresh from watcher failed", zap.String("filename", name), zap.Error(err))
		return
	}
	if ran {
		w.logger.Debug("document refreshed", zap.String("filename", name))
	}
}

package invite

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"agentbus/pkg/logger"
)

// debounceDelay coalesces the burst of events an editor save produces.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads the catalog when its file changes on disk. The parent
// directory is watched, not the file, so atomic rename saves are seen.
type Watcher struct {
	log      *logger.Logger
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the catalog's file.
func NewWatcher(log *logger.Logger, catalog *Catalog) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:     log,
		catalog: catalog,
		watcher: fsw,
	}, nil
}

// Start begins watching and reloading.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.catalog.Path())
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.log.Info("Catalog watcher started", zap.String("path", w.catalog.Path()))
	go w.processEvents(ctx)
	return nil
}

// Stop closes the watcher. Idempotent.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	var (
		debounceMu    sync.Mutex
		debounceTimer *time.Timer
	)
	target := w.catalog.Path()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			debounceMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := w.catalog.Load(); err != nil {
					w.log.Warn("Catalog reload failed", zap.Error(err))
				}
			})
			debounceMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Catalog watcher error", zap.Error(err))
		}
	}
}

package definition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultDebounceInterval is the quiet period after the last file change
// before a reload runs.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher reloads a Catalog when files in its directories change. A failed
// reload is logged and the previous registry contents stay in place.
type Watcher struct {
	catalog  *Catalog
	logger   *zap.Logger
	clock    clockwork.Clock
	debounce time.Duration

	mu       sync.Mutex
	pending  clockwork.Timer
	onReload func(error)
}

// NewWatcher creates a Watcher for catalog.
func NewWatcher(catalog *Catalog, clock clockwork.Clock, logger *zap.Logger) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		catalog:  catalog,
		logger:   logger,
		clock:    clock,
		debounce: DefaultDebounceInterval,
	}
}

// Run watches the catalog directories until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("definition watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.catalog.Dirs() {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("definition watcher: watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching workflow definitions", zap.Strings("dirs", w.catalog.Dirs()))

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("definition watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !isDefinitionFile(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("definition file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
	w.schedule()
}

// schedule debounces reloads so a burst of writes triggers one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = w.clock.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	err := w.catalog.Reload()
	if err != nil {
		w.logger.Error("workflow definition reload failed, keeping previous definitions", zap.Error(err))
	}

	w.mu.Lock()
	hook := w.onReload
	w.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

// OnReload registers fn to be called with the outcome of every reload.
func (w *Watcher) OnReload(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

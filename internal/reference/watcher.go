package reference

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay coalesces the burst of events a file replacement causes.
const DefaultReloadDelay = 500 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Path     string        // reference database file
	Delay    time.Duration // quiet period before OnChange (default: DefaultReloadDelay)
	OnChange func()
	Logger   *slog.Logger
}

// Watcher calls OnChange after the reference database file is written,
// created or replaced. The parent directory is watched so atomic renames
// over the file are seen.
type Watcher struct {
	config    WatcherConfig
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	debounced func(func())

	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// NewWatcher creates a watcher. Start must be called to begin watching.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if config.OnChange == nil {
		return nil, fmt.Errorf("onChange is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Delay <= 0 {
		config.Delay = DefaultReloadDelay
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		config:    config,
		logger:    config.Logger,
		watcher:   fw,
		debounced: debounce.New(config.Delay),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Reference watcher started", "path", w.config.Path)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	target := filepath.Clean(w.config.Path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("Reference database changed", "op", event.Op.String())
				w.debounced(w.config.OnChange)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Reference watcher error", "error", err)
		}
	}
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
		w.wg.Wait()
		w.logger.Info("Reference watcher stopped")
	})
}

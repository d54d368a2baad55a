package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ramonehamilton/prep-area/internal/cardfilter"
	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/proxydice"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// Catalog is one loaded generation of the reference database together with
// the indexes derived from it.
type Catalog struct {
	*reference.Catalog
	ProxyDice *proxydice.Index
}

// FilterCatalog returns the cards in the form the filter engine caches on.
func (c *Catalog) FilterCatalog() cardfilter.Catalog {
	return cardfilter.Catalog{Generation: c.Generation, Cards: c.Cards}
}

// Lookup returns the external name lookup, or nil when the reference
// database has no tz_card_map.
func (c *Catalog) Lookup() reference.Lookuper {
	if c.Names == nil {
		return nil
	}
	return c.Names
}

// ReferenceConfig configures a ReferenceHolder.
type ReferenceConfig struct {
	Path string

	// SnapshotPath is a vocabulary snapshot served while the database
	// cannot be read. Optional.
	SnapshotPath string

	Events *events.EventDispatcher
	Logger *slog.Logger
}

// ReferenceHolder owns the current reference catalog. Readers never block
// on a reload; they keep the catalog they fetched.
type ReferenceHolder struct {
	config     ReferenceConfig
	logger     *slog.Logger
	current    atomic.Pointer[Catalog]
	generation atomic.Uint64
	reloadMu   sync.Mutex

	fallbackOnce sync.Once
	fallback     *vocabulary.Vocabulary
}

// NewReferenceHolder creates a holder with nothing loaded.
func NewReferenceHolder(config ReferenceConfig) *ReferenceHolder {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &ReferenceHolder{
		config: config,
		logger: config.Logger.With("component", "reference"),
	}
}

// Path returns the reference database path.
func (h *ReferenceHolder) Path() string {
	return h.config.Path
}

// Reload reads the reference database and swaps in the new catalog. On
// failure the previous catalog stays current.
func (h *ReferenceHolder) Reload(ctx context.Context) (*Catalog, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	store, err := reference.Open(ctx, h.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference database: %w", err)
	}
	defer func() { _ = store.Close() }()

	generation := h.generation.Add(1)
	loaded, err := reference.LoadCatalog(ctx, store, generation)
	if err != nil {
		return nil, err
	}
	catalog := &Catalog{
		Catalog:   loaded,
		ProxyDice: proxydice.Build(loaded.Cards, loaded.Texts),
	}
	h.current.Store(catalog)

	h.logger.Info("Loaded reference catalog",
		"generation", generation,
		"cards", len(catalog.Cards),
		"proxyDice", catalog.ProxyDice.Len(),
		"lookup", catalog.HasLookup())
	events.Publish(h.config.Events, ctx, events.TypeReferenceReloaded, events.ReferenceReloadedEvent{
		Generation: generation,
		Cards:      len(catalog.Cards),
	})
	return catalog, nil
}

// Set installs a catalog built elsewhere. Used by tests and tools.
func (h *ReferenceHolder) Set(c *reference.Catalog) *Catalog {
	catalog := &Catalog{Catalog: c, ProxyDice: proxydice.Build(c.Cards, c.Texts)}
	h.current.Store(catalog)
	return catalog
}

// Current returns the loaded catalog or ErrNotReady.
func (h *ReferenceHolder) Current() (*Catalog, error) {
	if c := h.current.Load(); c != nil {
		return c, nil
	}
	return nil, ErrNotReady
}

// Ready reports whether a catalog is loaded.
func (h *ReferenceHolder) Ready() bool {
	return h.current.Load() != nil
}

// Vocabulary returns the loaded vocabulary, else the snapshot file, else an
// empty vocabulary.
func (h *ReferenceHolder) Vocabulary() *vocabulary.Vocabulary {
	if c := h.current.Load(); c != nil {
		return c.Vocabulary
	}
	h.fallbackOnce.Do(func() {
		if h.config.SnapshotPath == "" {
			return
		}
		v, err := vocabulary.LoadSnapshotFile(h.config.SnapshotPath)
		if err != nil {
			h.logger.Warn("Failed to load vocabulary snapshot", "path", h.config.SnapshotPath, "error", err)
			return
		}
		h.fallback = v
	})
	if h.fallback != nil {
		return h.fallback
	}
	return vocabulary.Empty()
}

// Watch reloads the catalog whenever the database file changes, until ctx
// is done.
func (h *ReferenceHolder) Watch(ctx context.Context, config reference.WatcherConfig) (*reference.Watcher, error) {
	config.Path = h.config.Path
	if config.Logger == nil {
		config.Logger = h.logger
	}
	config.OnChange = func() {
		if _, err := h.Reload(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("Reference reload failed", "error", err)
		}
	}
	w, err := reference.NewWatcher(config)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

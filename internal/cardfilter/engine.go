package cardfilter

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// DefaultCacheSize is the number of filter results kept by an Engine.
const DefaultCacheSize = 64

// Result is a filtered and grouped card list.
type Result struct {
	Groups []Group `json:"groups"`
	Total  int     `json:"total"`
}

// Catalog is one loaded generation of reference cards.
type Catalog struct {
	Generation uint64
	Cards      []models.CardRecord
}

// Engine memoizes filter results by selection, ownership version and
// catalog generation. Cached results must be treated as read-only.
type Engine struct {
	cache *lru.Cache
}

// NewEngine creates an Engine that keeps up to size results.
func NewEngine(size int) (*Engine, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter cache: %w", err)
	}
	return &Engine{cache: cache}, nil
}

// Run filters and groups the catalog. ownershipVersion must change whenever
// the ownership behind env changes.
func (e *Engine) Run(catalog Catalog, sel Selection, env Env, ownershipVersion uint64) Result {
	key := fmt.Sprintf("%d|%d|%s", catalog.Generation, ownershipVersion, sel.Fingerprint())
	if cached, ok := e.cache.Get(key); ok {
		return cached.(Result)
	}

	groups := GroupCards(Filter(catalog.Cards, sel, env))
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	result := Result{Groups: groups, Total: total}
	e.cache.Add(key, result)
	return result
}

// Purge drops every cached result.
func (e *Engine) Purge() {
	e.cache.Purge()
}

// Len returns the number of cached results.
func (e *Engine) Len() int {
	return e.cache.Len()
}

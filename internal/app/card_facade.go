package app

import (
	"context"

	"github.com/ramonehamilton/prep-area/internal/cardfilter"
	"github.com/ramonehamilton/prep-area/internal/proxydice"
	"github.com/ramonehamilton/prep-area/internal/search"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// CardFacade serves the catalog: vocabulary, filtering and lookups.
type CardFacade struct {
	services *Services
}

// NewCardFacade creates a new CardFacade with the given services.
func NewCardFacade(services *Services) *CardFacade {
	return &CardFacade{services: services}
}

// Vocabulary returns the filter vocabulary. It falls back to the snapshot
// file, then to an empty vocabulary, while no catalog is loaded.
func (f *CardFacade) Vocabulary(_ context.Context) *vocabulary.Vocabulary {
	return f.services.Reference.Vocabulary()
}

// Filter runs a selection against the catalog and the current ownership.
// Nothing loaded yields an empty result.
func (f *CardFacade) Filter(_ context.Context, sel cardfilter.Selection) cardfilter.Result {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return cardfilter.Result{Groups: []cardfilter.Group{}}
	}
	snap := f.services.Ownership.Snapshot()
	env := cardfilter.Env{
		Vocabulary: catalog.Vocabulary,
		Ownership:  snap,
		Texts:      catalog.Texts,
	}
	return f.services.Filter.Run(catalog.FilterCatalog(), sel, env, snap.Version)
}

// Card returns one card by pk.
func (f *CardFacade) Card(_ context.Context, cardPK int) (*models.CardRecord, error) {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return nil, err
	}
	card, ok := catalog.Card(cardPK)
	if !ok {
		return nil, invalidf("unknown card %d", cardPK)
	}
	return card, nil
}

// Suggest returns fuzzy character and card name suggestions.
func (f *CardFacade) Suggest(_ context.Context, query string, limit int) []search.Suggestion {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return []search.Suggestion{}
	}
	return search.Suggest(query, catalog.Cards, limit)
}

// ProxyDice finds cards whose dice can stand in for each other.
func (f *CardFacade) ProxyDice(_ context.Context, query string) []proxydice.Group {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return []proxydice.Group{}
	}
	return catalog.ProxyDice.Search(query)
}

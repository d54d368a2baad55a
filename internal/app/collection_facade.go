package app

import (
	"context"
	"io"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/charts"
	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/export"
	"github.com/ramonehamilton/prep-area/internal/importer"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// CollectionFacade handles ownership edits, statistics and the collection
// CSV round trip.
type CollectionFacade struct {
	services *Services
}

// NewCollectionFacade creates a new CollectionFacade with the given services.
func NewCollectionFacade(services *Services) *CollectionFacade {
	return &CollectionFacade{services: services}
}

// CardDeltaRequest adds or removes copies of a card.
type CardDeltaRequest struct {
	Delta int  `json:"delta"`
	Foil  bool `json:"foil"`

	// DiceLink overrides the configured dice link mode: "none", "d1" or "d2".
	DiceLink string `json:"diceLink,omitempty"`
}

// CardDeltaResult is the state of a card after an edit.
type CardDeltaResult struct {
	CardPK   int    `json:"cardPk"`
	Standard int    `json:"standard"`
	Foil     int    `json:"foil"`
	Dice     int    `json:"dice"`
	Version  uint64 `json:"version"`
}

// DiceDeltaRequest adds or removes dice of a character in a set group.
type DiceDeltaRequest struct {
	Character string `json:"character"`
	SetGroup  string `json:"setGroup"`
	Delta     int    `json:"delta"`
}

// DiceDeltaResult is the dice count of a bucket after an edit.
type DiceDeltaResult struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Snapshot returns a copy of the current ownership.
func (f *CollectionFacade) Snapshot(_ context.Context) *collection.Snapshot {
	return f.services.Ownership.Snapshot()
}

// ApplyCardDelta changes the owned count of a card, adding dice for the
// card's character when a dice link mode is active.
func (f *CollectionFacade) ApplyCardDelta(_ context.Context, cardPK int, req CardDeltaRequest) (*CardDeltaResult, error) {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return nil, err
	}
	card, ok := catalog.Card(cardPK)
	if !ok {
		return nil, invalidf("unknown card %d", cardPK)
	}

	link := f.services.DiceLink
	if strings.TrimSpace(req.DiceLink) != "" {
		if link, err = collection.ParseDiceLink(req.DiceLink); err != nil {
			return nil, invalidf("%v", err)
		}
	}

	store := f.services.Ownership
	store.ApplyCardDelta(card, req.Delta, req.Foil, link)

	snap := store.Snapshot()
	counts := snap.Card(cardPK)
	return &CardDeltaResult{
		CardPK:   cardPK,
		Standard: counts.Standard,
		Foil:     counts.Foil,
		Dice:     snap.DiceForCard(card),
		Version:  snap.Version,
	}, nil
}

// ApplyDiceDelta changes the dice owned for a character and set group.
func (f *CollectionFacade) ApplyDiceDelta(_ context.Context, req DiceDeltaRequest) (*DiceDeltaResult, error) {
	character := strings.TrimSpace(req.Character)
	if character == "" {
		return nil, invalidf("character is required")
	}
	group := strings.TrimSpace(req.SetGroup)
	if group == "" {
		group = models.OtherSetGroup
	}
	count := f.services.Ownership.IncDice(character, group, req.Delta)
	return &DiceDeltaResult{Key: models.DiceKey(character, group), Count: count}, nil
}

// Stats computes collection completion statistics. Nothing loaded yields
// empty statistics.
func (f *CollectionFacade) Stats(_ context.Context) *collection.Stats {
	snap := f.services.Ownership.Snapshot()
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return collection.ComputeStats(nil, snap, vocabulary.Empty())
	}
	return collection.ComputeStats(catalog.Cards, snap, catalog.Vocabulary)
}

// RenderStatsChart writes the set completion chart as an HTML page.
func (f *CollectionFacade) RenderStatsChart(ctx context.Context, w io.Writer) error {
	return charts.RenderCompletionChart(w, f.Stats(ctx), charts.DefaultChartConfig())
}

// Export writes the owned cards and dice as a collection CSV.
func (f *CollectionFacade) Export(_ context.Context, w io.Writer) error {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return err
	}
	rows := export.CollectionRows(catalog.Cards, catalog.Names, f.services.Ownership.Snapshot())
	return export.WriteCollectionCSV(w, rows)
}

// Import reads a collection CSV and applies it as one ownership change.
func (f *CollectionFacade) Import(ctx context.Context, r io.Reader) (*importer.CollectionReport, error) {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return nil, err
	}
	im := importer.New(importer.Config{
		Lookup: catalog.Lookup(),
		Cards:  catalog,
		Logger: f.services.Logger.With("component", "importer"),
	})
	return im.ImportCollection(ctx, r, f.services.Ownership)
}

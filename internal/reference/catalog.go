package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// Catalog is everything read from one load of the reference database. It
// is immutable; a reload produces a new Catalog with a higher Generation.
type Catalog struct {
	Generation uint64
	Cards      []models.CardRecord
	Texts      map[int]models.CardText
	Vocabulary *vocabulary.Vocabulary
	Names      *NameIndex // nil when tz_card_map is absent

	byPK map[int]int
}

// LoadCatalog reads the cards, card texts, vocabulary and external names.
func LoadCatalog(ctx context.Context, s *Store, generation uint64) (*Catalog, error) {
	raw, err := s.LoadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference rows: %w", err)
	}
	texts, err := s.LoadCardTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load card texts: %w", err)
	}
	names, err := s.LoadNameIndex(ctx)
	if err != nil && !errors.Is(err, ErrNoLookupTable) {
		return nil, fmt.Errorf("failed to load card names: %w", err)
	}

	return NewCatalog(generation, raw, texts, names), nil
}

// NewCatalog assembles a catalog from rows already in memory.
func NewCatalog(generation uint64, raw *models.ReferenceRows, texts map[int]models.CardText, names *NameIndex) *Catalog {
	if texts == nil {
		texts = map[int]models.CardText{}
	}
	c := &Catalog{
		Generation: generation,
		Cards:      raw.Cards,
		Texts:      texts,
		Vocabulary: vocabulary.Build(raw),
		Names:      names,
		byPK:       make(map[int]int, len(raw.Cards)),
	}
	for i := range c.Cards {
		c.byPK[c.Cards[i].CardPK] = i
	}
	return c
}

// Card returns a card by pk.
func (c *Catalog) Card(cardPK int) (*models.CardRecord, bool) {
	i, ok := c.byPK[cardPK]
	if !ok {
		return nil, false
	}
	return &c.Cards[i], true
}

// MaxDice returns the dice rating of a card.
func (c *Catalog) MaxDice(cardPK int) int {
	return models.MaxDiceFor(c.Texts, cardPK)
}

// HasLookup reports whether external names can be resolved.
func (c *Catalog) HasLookup() bool {
	return c.Names != nil
}

package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// OwnershipWriter applies imported counts. collection.Store implements it.
type OwnershipWriter interface {
	ApplyBatch(cards []collection.CardUpdate, dice []models.DiceCount) bool
}

// CollectionReport summarizes a collection import.
type CollectionReport struct {
	TotalStandard int                   `json:"totalStandard"`
	TotalFoil     int                   `json:"totalFoil"`
	DiceTotal     int                   `json:"diceTotal"`
	Unmatched     []trade.RowIdentifier `json:"unmatched"`
}

// keepFoil in the foils column leaves the stored foil count unchanged.
const keepFoil = "-1"

// ImportCollection reads a collection CSV with the columns Set, Character,
// Card Name, Cards Owned, Foils Owned and Dice Owned. Blank counts leave the
// stored value unchanged. Dice counts are merged per bucket by maximum and
// ignored for basic actions. Nothing is written unless the whole file parses.
func (im *Importer) ImportCollection(ctx context.Context, r io.Reader, w OwnershipWriter) (*CollectionReport, error) {
	if im.lookup == nil {
		return nil, reference.ErrNoLookupTable
	}
	h, rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	var idx [6]int
	for i, col := range []string{"Set", "Character", "Card Name", "Cards Owned", "Foils Owned", "Dice Owned"} {
		if idx[i], err = h.require(col); err != nil {
			return nil, err
		}
	}
	idxSet, idxCharacter, idxCardName := idx[0], idx[1], idx[2]
	idxCards, idxFoils, idxDice := idx[3], idx[4], idx[5]

	order := []int{}
	updates := make(map[int]*collection.CardUpdate)
	dice := make(map[string]models.DiceCount)
	diceOrder := []string{}
	unmatched := newUnmatchedRows()

	for _, row := range rows {
		set := tokens.Field(row, idxSet)
		character := tokens.Field(row, idxCharacter)
		cardName := tokens.Field(row, idxCardName)
		if set == "" && character == "" && cardName == "" {
			continue
		}
		if character == "" || cardName == "" {
			unmatched.add(set, character, cardName)
			continue
		}

		pk, ok, err := im.lookup.Lookup(ctx, set, character, cardName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s / %s: %w", character, cardName, err)
		}
		var card *models.CardRecord
		if ok && pk > 0 && im.cards != nil {
			card, _ = im.cards.Card(pk)
		}
		if card == nil || card.CharacterName == "" {
			unmatched.add(set, character, cardName)
			continue
		}

		update, seen := updates[pk]
		if !seen {
			update = &collection.CardUpdate{CardPK: pk}
			updates[pk] = update
			order = append(order, pk)
		}
		if n, ok := tokens.SanitizeCount(tokens.Field(row, idxCards)); ok {
			update.Standard = &n
		}
		if foil := tokens.Field(row, idxFoils); foil != keepFoil {
			if n, ok := tokens.SanitizeCount(foil); ok {
				update.Foil = &n
			}
		}

		n, ok := tokens.SanitizeCount(tokens.Field(row, idxDice))
		if !ok || tokens.IsBasicAction(card.TypeName) {
			continue
		}
		key := models.DiceKey(card.CharacterName, card.GroupLabel())
		prev, seen := dice[key]
		if !seen {
			diceOrder = append(diceOrder, key)
		}
		if !seen || n > prev.Count {
			dice[key] = models.DiceCount{Character: card.CharacterName, SetGroup: card.GroupLabel(), Count: n}
		}
	}

	report := &CollectionReport{Unmatched: unmatched.rows}
	cardUpdates := make([]collection.CardUpdate, 0, len(order))
	for _, pk := range order {
		u := updates[pk]
		if u.Standard == nil && u.Foil == nil {
			continue
		}
		if u.Standard != nil {
			report.TotalStandard += *u.Standard
		}
		if u.Foil != nil {
			report.TotalFoil += *u.Foil
		}
		cardUpdates = append(cardUpdates, *u)
	}
	diceUpdates := make([]models.DiceCount, 0, len(diceOrder))
	for _, key := range diceOrder {
		report.DiceTotal += dice[key].Count
		diceUpdates = append(diceUpdates, dice[key])
	}

	changed := w.ApplyBatch(cardUpdates, diceUpdates)
	im.logger.Info("Collection imported",
		"cards", len(cardUpdates),
		"dice", len(diceUpdates),
		"unmatched", len(report.Unmatched),
		"changed", changed)
	return report, nil
}

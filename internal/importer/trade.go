package importer

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// Placeholders for unmatched partner dice rows.
const (
	unknownCharacter = "Unknown"
	otherSet         = models.OtherSetGroup
)

type tradeColumns struct {
	set, character, cardName, cardPK                         int
	spareStandard, spareFoil, needStandard, needFoil, needAny int
	diceSpare, diceOwned, diceRequired, diceNeed              int
}

func parseTradeColumns(h header) (tradeColumns, error) {
	var (
		c   tradeColumns
		err error
	)
	if c.set, err = h.require("Set"); err != nil {
		return c, err
	}
	if c.character, err = h.require("Character"); err != nil {
		return c, err
	}
	if c.cardName, err = h.require("Card Name"); err != nil {
		return c, err
	}
	c.cardPK = h.find("card pk", "card_pk")
	if c.spareStandard = h.find("standard spare", "cards spare"); c.spareStandard < 0 {
		c.spareStandard = h.find("standard owned", "cards owned")
	}
	if c.spareFoil = h.find("foil spare", "foils spare"); c.spareFoil < 0 {
		c.spareFoil = h.find("foil owned", "foils owned")
	}
	c.needStandard = h.find("need standard")
	c.needFoil = h.find("need foil")
	c.needAny = h.find("need any")
	c.diceSpare = h.find("dice spare")
	c.diceOwned = h.find("dice owned")
	c.diceRequired = h.find("dice required")
	c.diceNeed = h.find("dice need", "need dice")
	return c, nil
}

// ImportTrade reads a trade partner CSV, usually one produced by the trade
// export of another collection. Rows are resolved by an explicit card pk or
// through the lookup table; values for the same card or dice bucket merge
// by maximum. Totals count every non-blank row, matched or not.
func (im *Importer) ImportTrade(ctx context.Context, r io.Reader) (*trade.PartnerSnapshot, error) {
	if im.lookup == nil {
		return nil, reference.ErrNoLookupTable
	}
	h, rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	cols, err := parseTradeColumns(h)
	if err != nil {
		return nil, err
	}

	partner := trade.NewPartnerSnapshot()
	unmatched := newUnmatchedRows()
	count := func(row []string, idx int) int {
		return tokens.ParseCount(tokens.Field(row, idx))
	}

	for _, row := range rows {
		set := tokens.Field(row, cols.set)
		character := tokens.Field(row, cols.character)
		cardName := tokens.Field(row, cols.cardName)
		if set == "" && character == "" && cardName == "" {
			continue
		}

		pk := parseCardPK(tokens.Field(row, cols.cardPK))
		if pk == 0 && character != "" && cardName != "" {
			found, ok, err := im.lookup.Lookup(ctx, set, character, cardName)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s / %s: %w", character, cardName, err)
			}
			if ok && found > 0 {
				pk = found
			}
		}

		card := trade.PartnerCard{
			SpareStandard: count(row, cols.spareStandard),
			SpareFoil:     count(row, cols.spareFoil),
			NeedStandard:  count(row, cols.needStandard),
			NeedFoil:      count(row, cols.needFoil),
			NeedAny:       count(row, cols.needAny),
		}
		dice := trade.PartnerDice{
			Spare:    count(row, cols.diceSpare),
			Need:     count(row, cols.diceNeed),
			Owned:    count(row, cols.diceOwned),
			Required: count(row, cols.diceRequired),
		}

		t := &partner.Totals
		t.Rows++
		t.SpareStandard += card.SpareStandard
		t.SpareFoil += card.SpareFoil
		t.SpareDice += dice.Spare
		t.NeedStandard += card.NeedStandard
		t.NeedFoil += card.NeedFoil
		t.NeedAny += card.NeedAny
		t.NeedDice += dice.Need

		if pk == 0 {
			unmatched.add(set, character, cardName)
			if hasDice(dice) {
				diceCharacter, diceSet := character, set
				if diceCharacter == "" {
					diceCharacter = unknownCharacter
				}
				if diceSet == "" {
					diceSet = otherSet
				}
				mergeDice(partner, models.DiceKey(diceCharacter, diceSet), dice)
			}
			continue
		}

		if card != (trade.PartnerCard{}) {
			prev := partner.Cards[pk]
			partner.Cards[pk] = trade.PartnerCard{
				SpareStandard: max(prev.SpareStandard, card.SpareStandard),
				SpareFoil:     max(prev.SpareFoil, card.SpareFoil),
				NeedStandard:  max(prev.NeedStandard, card.NeedStandard),
				NeedFoil:      max(prev.NeedFoil, card.NeedFoil),
				NeedAny:       max(prev.NeedAny, card.NeedAny),
			}
		}

		if hasDice(dice) {
			diceCharacter, group := character, otherSet
			if rec, ok := im.card(pk); ok {
				group = rec.GroupLabel()
				if rec.CharacterName != "" {
					diceCharacter = rec.CharacterName
				}
			}
			if diceCharacter == "" {
				diceCharacter = unknownCharacter
			}
			mergeDice(partner, models.DiceKey(diceCharacter, group), dice)
		}
	}

	partner.Unmatched = unmatched.rows
	im.logger.Info("Trade list imported",
		"rows", partner.Totals.Rows,
		"cards", len(partner.Cards),
		"dice", len(partner.Dice),
		"unmatched", len(partner.Unmatched))
	return partner, nil
}

func (im *Importer) card(pk int) (*models.CardRecord, bool) {
	if im.cards == nil {
		return nil, false
	}
	return im.cards.Card(pk)
}

// parseCardPK returns a positive integral pk, or 0.
func parseCardPK(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0
	}
	return int(n)
}

func hasDice(d trade.PartnerDice) bool {
	return d.Spare > 0 || d.Need > 0 || d.Owned > 0 || d.Required > 0
}

func mergeDice(partner *trade.PartnerSnapshot, key string, d trade.PartnerDice) {
	prev := partner.Dice[key]
	partner.Dice[key] = trade.PartnerDice{
		Spare:    max(prev.Spare, d.Spare),
		Need:     max(prev.Need, d.Need),
		Owned:    max(prev.Owned, d.Owned),
		Required: max(prev.Required, d.Required),
	}
}

package export

import (
	"io"
	"sort"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// NameSource returns the trading-site name of a card.
type NameSource interface {
	Name(cardPK int) (reference.TZName, bool)
}

// CollectionRow is one line of a collection export. Nil counts are written
// as empty cells.
type CollectionRow struct {
	Set        string `csv:"Set" json:"set"`
	Character  string `csv:"Character" json:"character"`
	CardName   string `csv:"Card Name" json:"cardName"`
	CardsOwned *int   `csv:"Cards Owned" json:"cardsOwned"`
	FoilsOwned *int   `csv:"Foils Owned" json:"foilsOwned"`
	DiceOwned  *int   `csv:"Dice Owned" json:"diceOwned"`
}

// CollectionRows lists every owned card under its trading-site name, sorted
// by set, character and card name. Each dice bucket's count is written on
// the first row of that bucket; buckets with dice but no owned card get a
// row of their own.
func CollectionRows(cards []models.CardRecord, names NameSource, snap *collection.Snapshot) []CollectionRow {
	if snap == nil {
		snap = collection.EmptySnapshot()
	}

	owned := make([]*models.CardRecord, 0)
	firstOfBucket := make(map[string]*models.CardRecord)
	for i := range cards {
		card := &cards[i]
		if character := strings.TrimSpace(card.CharacterName); character != "" {
			key := models.DiceKey(character, card.GroupLabel())
			if _, ok := firstOfBucket[key]; !ok {
				firstOfBucket[key] = card
			}
		}
		if snap.Owns(card.CardPK) {
			owned = append(owned, card)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if c := tokens.CompareFold(a.DisplayLabel(), b.DisplayLabel()); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.CharacterName, b.CharacterName); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.CardName, b.CardName); c != 0 {
			return c < 0
		}
		return a.CardPK < b.CardPK
	})

	used := make(map[string]bool)
	rows := make([]CollectionRow, 0, len(owned))
	for _, card := range owned {
		row := namedRow(card, names)
		counts := snap.Card(card.CardPK)
		row.CardsOwned = intPtr(counts.Standard)
		row.FoilsOwned = intPtr(counts.Foil)

		if character := strings.TrimSpace(card.CharacterName); character != "" {
			key := models.DiceKey(character, card.GroupLabel())
			if n := snap.Dice[key]; n > 0 && !used[key] {
				row.DiceOwned = intPtr(n)
				used[key] = true
			}
		}
		rows = append(rows, row)
	}

	leftovers := make([]string, 0)
	for key, n := range snap.Dice {
		if n > 0 && !used[key] {
			leftovers = append(leftovers, key)
		}
	}
	sort.Strings(leftovers)
	for _, key := range leftovers {
		var row CollectionRow
		if card, ok := firstOfBucket[key]; ok {
			row = namedRow(card, names)
		} else {
			character, group := models.SplitDiceKey(key)
			row = CollectionRow{Set: group, Character: character, CardName: character}
		}
		row.DiceOwned = intPtr(snap.Dice[key])
		rows = append(rows, row)
	}

	return rows
}

// namedRow fills the names of a row from the lookup table, falling back to
// the catalog's set, character and card name.
func namedRow(card *models.CardRecord, names NameSource) CollectionRow {
	var tz reference.TZName
	if names != nil {
		tz, _ = names.Name(card.CardPK)
	}
	row := CollectionRow{Set: tz.Set, Character: tz.Character, CardName: tz.CardName}
	if row.Set == "" {
		row.Set = card.DisplayLabel()
	}
	if row.Character == "" {
		row.Character = card.CharacterName
	}
	if row.CardName == "" {
		row.CardName = card.CardName
	}
	if row.CardName == "" {
		row.CardName = card.CharacterName
	}
	return row
}

// WriteCollectionCSV writes rows with every field quoted and CRLF line
// endings. An empty collection still produces a header and one blank row.
func WriteCollectionCSV(w io.Writer, rows []CollectionRow) error {
	if len(rows) == 0 {
		rows = []CollectionRow{{CardsOwned: intPtr(0), FoilsOwned: intPtr(0)}}
	}
	exporter := NewExporter(Options{Format: FormatCSV, QuoteAll: true, CRLF: true})
	return exporter.ExportTo(w, rows)
}

func intPtr(n int) *int {
	return &n
}

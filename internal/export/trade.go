package export

import (
	"io"

	"github.com/ramonehamilton/prep-area/internal/trade"
)

// TradeRow is one line of a trade export. Dice-only buckets have no card
// pk and the card name "Dice".
type TradeRow struct {
	Set           string `csv:"Set" json:"set"`
	Character     string `csv:"Character" json:"character"`
	CardName      string `csv:"Card Name" json:"cardName"`
	CardPK        *int   `csv:"Card PK" json:"cardPk"`
	StandardOwned int    `csv:"Standard Owned" json:"standardOwned"`
	FoilOwned     int    `csv:"Foil Owned" json:"foilOwned"`
	StandardSpare int    `csv:"Standard Spare" json:"standardSpare"`
	FoilSpare     int    `csv:"Foil Spare" json:"foilSpare"`
	NeedStandard  int    `csv:"Need Standard" json:"needStandard"`
	NeedFoil      int    `csv:"Need Foil" json:"needFoil"`
	NeedAny       int    `csv:"Need Any" json:"needAny"`
	PreferFoil    string `csv:"Prefer Foil" json:"preferFoil"`
	DiceOwned     int    `csv:"Dice Owned" json:"diceOwned"`
	DiceRequired  int    `csv:"Dice Required" json:"diceRequired"`
	DiceSpare     int    `csv:"Dice Spare" json:"diceSpare"`
	DiceNeed      int    `csv:"Dice Need" json:"diceNeed"`
}

// diceOnlyCardName marks rows for dice buckets without a card.
const diceOnlyCardName = "Dice"

// TradeRows lists every card detail of a trade snapshot followed by the
// dice buckets that have no representative card.
func TradeRows(snap *trade.Snapshot) []TradeRow {
	if snap == nil {
		return nil
	}
	rows := make([]TradeRow, 0, len(snap.CardDetails))
	for _, d := range snap.SortedCardDetails() {
		row := TradeRow{
			Set:           d.Set,
			Character:     d.Character,
			CardName:      d.CardName,
			CardPK:        intPtr(d.CardPK),
			StandardOwned: d.StandardOwned,
			FoilOwned:     d.FoilOwned,
			StandardSpare: d.SpareStandard,
			FoilSpare:     d.SpareFoil,
			NeedStandard:  d.NeedStandard,
			NeedFoil:      d.NeedFoil,
			NeedAny:       d.NeedAny,
		}
		if d.PreferFoil {
			row.PreferFoil = "yes"
		}
		if d.Dice != nil {
			row.DiceOwned = d.Dice.Owned
			row.DiceRequired = d.Dice.Required
			row.DiceSpare = d.Dice.Spare
			row.DiceNeed = d.Dice.Need
		}
		rows = append(rows, row)
	}
	for _, entry := range snap.DiceEntries {
		if entry.RepCardPK != nil {
			continue
		}
		rows = append(rows, TradeRow{
			Set:          entry.Set,
			Character:    entry.Character,
			CardName:     diceOnlyCardName,
			DiceOwned:    entry.Owned,
			DiceRequired: entry.Required,
			DiceSpare:    entry.Spare,
			DiceNeed:     entry.Need,
		})
	}
	return rows
}

// WriteTradeCSV writes rows quoting only fields that need it, with CRLF
// line endings. It returns ErrNothingToExport for an empty list.
func WriteTradeCSV(w io.Writer, rows []TradeRow) error {
	exporter := NewExporter(Options{Format: FormatCSV, CRLF: true})
	return exporter.ExportTo(w, rows)
}

package export

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

type stubNames map[int]reference.TZName

func (n stubNames) Name(pk int) (reference.TZName, bool) {
	name, ok := n[pk]
	return name, ok
}

func exportCards() []models.CardRecord {
	return []models.CardRecord{
		{CardPK: 1, CharacterName: "Hulk", CardName: "Annihilator", SetGroup: "avx"},
		{CardPK: 2, CharacterName: "Hulk", CardName: "Jade Giant", SetGroup: "avx"},
		{CardPK: 3, CharacterName: "Beholder", CardName: "Eye Tyrant", SetGroup: "bff"},
		{CardPK: 4, CharacterName: "Thor", CardName: "", SetLabel: "AvX OP"},
		{CardPK: 5, CharacterName: "Drizzt", CardName: "Drow Ranger", SetGroup: "bff"},
	}
}

func TestCollectionRows(t *testing.T) {
	snap := collection.EmptySnapshot()
	snap.Cards[1] = collection.Counts{Standard: 1}
	snap.Cards[2] = collection.Counts{Standard: 2, Foil: 1}
	snap.Cards[3] = collection.Counts{Foil: 1}
	snap.Cards[4] = collection.Counts{Standard: 1}
	snap.Dice[models.DiceKey("Hulk", "avx")] = 6
	snap.Dice[models.DiceKey("Drizzt", "bff")] = 3
	snap.Dice[models.DiceKey("Ghost", "zzz")] = 1
	snap.Dice[models.DiceKey("Beholder", "bff")] = 0

	names := stubNames{
		2: {Set: "Avengers vs X-Men", Character: "Hulk", CardName: "Jade Giant"},
		5: {Set: "Battle for Faerun", Character: "Drizzt", CardName: "Drow Ranger"},
	}

	rows := CollectionRows(exportCards(), names, snap)
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d: %+v", len(rows), rows)
	}

	expect := []struct {
		set, character, cardName string
		cards, foils, dice      string
	}{
		{"avx", "Hulk", "Annihilator", "1", "0", "6"},
		{"Avengers vs X-Men", "Hulk", "Jade Giant", "2", "1", ""},
		{"AvX OP", "Thor", "Thor", "1", "0", ""},
		{"bff", "Beholder", "Eye Tyrant", "0", "1", ""},
		{"Battle for Faerun", "Drizzt", "Drow Ranger", "", "", "3"},
		{"zzz", "Ghost", "Ghost", "", "", "1"},
	}
	for i, want := range expect {
		got := rows[i]
		if got.Set != want.set || got.Character != want.character || got.CardName != want.cardName {
			t.Errorf("row %d: got names %q/%q/%q, want %q/%q/%q", i, got.Set, got.Character, got.CardName, want.set, want.character, want.cardName)
		}
		if s := ptrString(got.CardsOwned); s != want.cards {
			t.Errorf("row %d: cards owned %q, want %q", i, s, want.cards)
		}
		if s := ptrString(got.FoilsOwned); s != want.foils {
			t.Errorf("row %d: foils owned %q, want %q", i, s, want.foils)
		}
		if s := ptrString(got.DiceOwned); s != want.dice {
			t.Errorf("row %d: dice owned %q, want %q", i, s, want.dice)
		}
	}
}

func TestWriteCollectionCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []CollectionRow{{Set: "AvX", Character: "Hulk", CardName: `The "Big" Guy`, CardsOwned: intPtr(2), FoilsOwned: intPtr(0)}}
	if err := WriteCollectionCSV(&buf, rows); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	want := "\"Set\",\"Character\",\"Card Name\",\"Cards Owned\",\"Foils Owned\",\"Dice Owned\"\r\n" +
		"\"AvX\",\"Hulk\",\"The \"\"Big\"\" Guy\",\"2\",\"0\",\"\"\r\n"
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestWriteCollectionCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCollectionCSV(&buf, nil); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	want := "\"Set\",\"Character\",\"Card Name\",\"Cards Owned\",\"Foils Owned\",\"Dice Owned\"\r\n" +
		"\"\",\"\",\"\",\"0\",\"0\",\"\"\r\n"
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%q", buf.String())
	}
}

func TestTradeRows(t *testing.T) {
	snap := collection.EmptySnapshot()
	snap.Cards[1] = collection.Counts{Standard: 3}
	snap.Dice[models.DiceKey("Hulk", "avx")] = 25
	snap.Dice[models.DiceKey("Ghost", "zzz")] = 2

	cards := []models.CardRecord{
		{CardPK: 1, CharacterName: "Hulk", CardName: "Annihilator, Green", SetGroup: "avx", HasFoil: true},
	}
	ts := trade.BuildSnapshot(cards, nil, snap, labels{}, trade.PolicySingleCopy)

	rows := TradeRows(ts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	card := rows[0]
	if card.CardPK == nil || *card.CardPK != 1 || card.StandardSpare != 2 || card.DiceSpare != 5 || card.DiceRequired != 20 {
		t.Errorf("unexpected card row: %+v", card)
	}
	dice := rows[1]
	if dice.CardPK != nil || dice.CardName != "Dice" || dice.DiceOwned != 2 || dice.DiceRequired != 0 || dice.DiceSpare != 2 {
		t.Errorf("unexpected dice row: %+v", dice)
	}

	var buf bytes.Buffer
	if err := WriteTradeCSV(&buf, rows); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}
	want := "Set,Character,Card Name,Card PK,Standard Owned,Foil Owned,Standard Spare,Foil Spare,Need Standard,Need Foil,Need Any,Prefer Foil,Dice Owned,Dice Required,Dice Spare,Dice Need\r\n" +
		"AVX,Hulk,\"Annihilator, Green\",1,3,0,2,0,0,1,0,,25,20,5,0\r\n" +
		"zzz,Ghost,Dice,,0,0,0,0,0,0,0,,2,0,2,0\r\n"
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestWriteTradeCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradeCSV(&buf, TradeRows(trade.BuildSnapshot(nil, nil, nil, labels{}, trade.PolicyKeepBoth))); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("expected ErrNothingToExport, got %v", err)
	}
}

type labels struct{}

func (labels) SetDisplay(card *models.CardRecord) string {
	if card.SetGroup != "" {
		return "AVX"
	}
	return card.SetLabel
}

func (labels) SetGroupLabel(group string) string { return group }

func ptrString(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// Package benchmarks measures the catalog hot paths: filtering, grouping,
// suggestions and trade reconciliation.
//
// To run:
//
//	go test -bench=. -benchmem ./benchmarks/...
//
// To compare results across changes:
//
//	go install golang.org/x/perf/cmd/benchstat@latest
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > old.txt
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > new.txt
//	benchstat old.txt new.txt
package benchmarks

import (
	"fmt"
	"testing"

	"github.com/ramonehamilton/prep-area/internal/cardfilter"
	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/search"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

var (
	universes = []string{"Marvel", "DC", "D&D", "TMNT", "Yu-Gi-Oh!"}
	rarities  = []string{"Common", "Uncommon", "Rare", "Super Rare"}
	energies  = []string{"fist", "bolt", "mask", "shield"}
)

// catalogSize approximates the full reference catalog.
const catalogSize = 4000

func generateCards(n int) []models.CardRecord {
	cards := make([]models.CardRecord, n)
	for i := range cards {
		cost := i % 8
		rank := i%4 + 1
		set := fmt.Sprintf("set%02d", i%40)
		cards[i] = models.CardRecord{
			CardPK:        i + 1,
			SetID:         i%40 + 1,
			SetLabel:      set,
			SetGroup:      set,
			Universe:      universes[i%len(universes)],
			CardNumber:    fmt.Sprintf("%03d", i%150),
			CharacterName: fmt.Sprintf("Character %d", i/4),
			CardName:      fmt.Sprintf("Card Name %d", i),
			Cost:          &cost,
			EnergyCode:    energies[i%len(energies)],
			EnergyTokens:  energies[i%len(energies)],
			TypeName:      "Character",
			Rarity:        rarities[i%len(rarities)],
			RarityRank:    &rank,
			AffTokens:     "Avengers",
			HasFoil:       i%3 == 0,
		}
	}
	return cards
}

func generateTexts(cards []models.CardRecord) map[int]models.CardText {
	texts := make(map[int]models.CardText, len(cards))
	for _, c := range cards {
		texts[c.CardPK] = models.CardText{MaxDice: c.CardPK%4 + 1}
	}
	return texts
}

func generateOwnership(cards []models.CardRecord) *collection.Snapshot {
	rows := make([]models.CollectionRow, 0, len(cards)/2)
	for i, c := range cards {
		if i%2 != 0 {
			continue
		}
		std, foil := float64(i%3), float64(i%2)
		rows = append(rows, models.CollectionRow{CardPK: c.CardPK, HaveCards: &std, HaveFoil: &foil})
	}
	return collection.BuildSnapshot(rows, nil)
}

type setLabels struct{}

func (setLabels) SetDisplay(card *models.CardRecord) string { return card.SetLabel }
func (setLabels) SetGroupLabel(group string) string { return group }

func BenchmarkFilter_Query(b *testing.B) {
	cards := generateCards(catalogSize)
	env := cardfilter.Env{Ownership: generateOwnership(cards)}
	sel := cardfilter.Selection{Query: "name 12", Mode: cardfilter.ModeName}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cardfilter.Filter(cards, sel, env)
	}
}

func BenchmarkFilter_Facets(b *testing.B) {
	cards := generateCards(catalogSize)
	env := cardfilter.Env{Ownership: generateOwnership(cards)}
	sel := cardfilter.Selection{
		Universes: []string{"Marvel", "DC"},
		Rarities:  []string{"Rare"},
		Costs:     []int{3, 4, 5},
		Owned:     true,
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cardfilter.Filter(cards, sel, env)
	}
}

func BenchmarkFilter_Cached(b *testing.B) {
	cards := generateCards(catalogSize)
	engine, err := cardfilter.NewEngine(64)
	if err != nil {
		b.Fatal(err)
	}
	catalog := cardfilter.Catalog{Cards: cards, Generation: 1}
	env := cardfilter.Env{Ownership: generateOwnership(cards)}
	sel := cardfilter.Selection{Universes: []string{"Marvel"}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Run(catalog, sel, env, 1)
	}
}

func BenchmarkGroupCards(b *testing.B) {
	cards := generateCards(catalogSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cardfilter.GroupCards(cards)
	}
}

func BenchmarkSuggest(b *testing.B) {
	cards := generateCards(catalogSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Suggest("chr 12", cards, 10)
	}
}

func BenchmarkTradeSnapshot(b *testing.B) {
	cards := generateCards(catalogSize)
	texts := generateTexts(cards)
	owned := generateOwnership(cards)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = trade.BuildSnapshot(cards, texts, owned, setLabels{}, trade.PolicyKeepBoth)
	}
}

func BenchmarkReconcile(b *testing.B) {
	cards := generateCards(catalogSize)
	local := trade.BuildSnapshot(cards, generateTexts(cards), generateOwnership(cards), setLabels{}, trade.PolicySingleCopy)

	partner := trade.NewPartnerSnapshot()
	for i, c := range cards {
		if i%5 == 0 {
			partner.Cards[c.CardPK] = trade.PartnerCard{SpareStandard: 1, NeedFoil: i % 2}
		}
	}
	for key := range local.NeedDice {
		partner.Dice[key] = trade.PartnerDice{Spare: 2}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = trade.Reconcile(local, partner)
	}
}

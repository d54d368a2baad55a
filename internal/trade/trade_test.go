package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

type stubLabels struct{}

func (stubLabels) SetDisplay(card *models.CardRecord) string {
	if card.SetGroup != "" {
		return "Set " + card.SetGroup
	}
	return card.SetLabel
}

func (stubLabels) SetGroupLabel(group string) string { return group }

func fv(v float64) *float64 { return &v }

func owned(cards map[int][2]float64, dice map[string]float64) *collection.Snapshot {
	var rows []models.CollectionRow
	for pk, c := range cards {
		rows = append(rows, models.CollectionRow{CardPK: pk, HaveCards: fv(c[0]), HaveFoil: fv(c[1])})
	}
	var diceRows []models.DiceRow
	for key, count := range dice {
		character, group := models.SplitDiceKey(key)
		diceRows = append(diceRows, models.DiceRow{Character: character, SetGroup: group, Count: fv(count)})
	}
	return collection.BuildSnapshot(rows, diceRows)
}

func card(pk int, character, name, group string, hasFoil bool) models.CardRecord {
	return models.CardRecord{CardPK: pk, CharacterName: character, CardName: name, SetGroup: group, HasFoil: hasFoil}
}

func TestComputePositions(t *testing.T) {
	tests := []struct {
		name     string
		standard int
		foil     int
		hasFoil  bool
		policy   Policy
		want     Positions
	}{
		{"keep both, extra standard", 2, 0, true, PolicyKeepBoth, Positions{SpareStandard: 1, NeedFoil: 1}},
		{"keep both, no foil print", 0, 0, false, PolicyKeepBoth, Positions{NeedStandard: 1}},
		{"keep both, extra foil", 1, 3, true, PolicyKeepBoth, Positions{SpareFoil: 2}},
		{"single copy, foil only", 0, 1, true, PolicySingleCopy, Positions{}},
		{"single copy, nothing owned", 0, 0, true, PolicySingleCopy, Positions{NeedFoil: 1, NeedAny: 1, PreferFoil: true}},
		{"single copy, standard and foil", 2, 1, true, PolicySingleCopy, Positions{SpareStandard: 2}},
		{"single copy, no foil print", 0, 0, false, PolicySingleCopy, Positions{NeedStandard: 1}},
		{"negative counts clamp", -4, -1, false, PolicyKeepBoth, Positions{NeedStandard: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePositions(tt.standard, tt.foil, tt.hasFoil, tt.policy))
		})
	}
}

func TestPolicyText(t *testing.T) {
	for _, in := range []string{"", "both", "A", "keep-both"} {
		p, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, PolicyKeepBoth, p)
	}
	for _, in := range []string{"single", "B", " single-copy "} {
		p, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, PolicySingleCopy, p)
	}
	_, err := ParsePolicy("triple")
	assert.Error(t, err)

	data, err := json.Marshal(struct {
		Policy Policy `json:"policy"`
	}{PolicySingleCopy})
	require.NoError(t, err)
	assert.JSONEq(t, `{"policy":"single"}`, string(data))

	var decoded struct {
		Policy Policy `json:"policy"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"policy":"b"}`), &decoded))
	assert.Equal(t, PolicySingleCopy, decoded.Policy)
}

func TestBuildSnapshot_DiceRequirement(t *testing.T) {
	cards := []models.CardRecord{
		card(1, "Hulk", "Anger Issues", "avx", false),
		card(2, "Hulk", "Annihilator", "avx", false),
		card(3, "  ", "Nobody", "avx", false),
	}
	texts := map[int]models.CardText{1: {CardPK: 1, MaxDice: 1}, 2: {CardPK: 2, MaxDice: 2}}
	snap := BuildSnapshot(cards, texts, owned(nil, map[string]float64{"Hulk||avx": 5, "Thor||": 2}), stubLabels{}, PolicyKeepBoth)

	require.Len(t, snap.DiceEntries, 2)
	hulk := snap.DiceEntries[0]
	assert.Equal(t, "Hulk||avx", hulk.Key)
	assert.Equal(t, 2, hulk.Required)
	assert.Equal(t, 5, hulk.Owned)
	assert.Equal(t, 3, hulk.Spare)
	assert.Equal(t, 0, hulk.Need)
	require.NotNil(t, hulk.RepCardPK)
	assert.Equal(t, 2, *hulk.RepCardPK)
	assert.Equal(t, "Set avx", hulk.Set)

	thor := snap.DiceEntries[1]
	assert.Equal(t, "Thor||Other", thor.Key)
	assert.Equal(t, 0, thor.Required)
	assert.Equal(t, 2, thor.Spare)
	assert.Nil(t, thor.RepCardPK)
	assert.Equal(t, "Other", thor.Set)

	assert.NotContains(t, snap.CardDetails, 3)
	for _, pk := range []int{1, 2} {
		require.NotNil(t, snap.CardDetails[pk].Dice)
		assert.Equal(t, DiceInfo{Owned: 5, Required: 2, Spare: 3}, *snap.CardDetails[pk].Dice)
	}
	assert.Contains(t, snap.SpareDice, "Hulk||avx")
	assert.Contains(t, snap.DiceByCard, 2)
	assert.Contains(t, snap.NeedCards, 1)
}

func TestBuildSnapshot_DefaultMaxDice(t *testing.T) {
	snap := BuildSnapshot([]models.CardRecord{card(1, "Thor", "God of Thunder", "avx", false)}, nil, nil, stubLabels{}, PolicyKeepBoth)
	require.Len(t, snap.DiceEntries, 1)
	assert.Equal(t, models.DefaultMaxDice, snap.DiceEntries[0].Required)
	assert.Equal(t, models.DefaultMaxDice, snap.DiceEntries[0].Need)
}

func TestBuildSnapshot_RepresentativeTieBreak(t *testing.T) {
	cards := []models.CardRecord{
		card(9, "Hulk", "", "avx", false),
		card(7, "Hulk", "Zap", "avx", false),
		card(8, "Hulk", "Anger", "avx", false),
		card(4, "Hulk", "anger", "avx", false),
	}
	snap := BuildSnapshot(cards, nil, nil, stubLabels{}, PolicyKeepBoth)
	require.Len(t, snap.DiceEntries, 1)
	assert.Equal(t, 4, *snap.DiceEntries[0].RepCardPK)
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		need, available  int
		taken, remaining int
	}{
		{1, 2, 1, 1},
		{3, 2, 2, 0},
		{0, 2, 0, 2},
		{-1, 2, 0, 2},
		{2, 0, 0, 0},
		{2, -3, 0, 0},
	}
	for _, tt := range tests {
		taken, remaining := Allocate(tt.need, tt.available)
		assert.Equal(t, tt.taken, taken, "need %d available %d", tt.need, tt.available)
		assert.Equal(t, tt.remaining, remaining, "need %d available %d", tt.need, tt.available)
		assert.LessOrEqual(t, taken, max(0, tt.need))
		assert.LessOrEqual(t, taken, max(0, tt.available))
	}
}

// satisfiedDice gives every card exactly the dice it requires.
func satisfiedDice(character, group string) (map[int]models.CardText, map[string]float64) {
	return map[int]models.CardText{}, map[string]float64{models.DiceKey(character, group): models.DefaultMaxDice}
}

func TestReconcile_TradeMinus(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", false)}, texts,
		owned(map[int][2]float64{1: {3, 0}}, dice), stubLabels{}, PolicyKeepBoth)
	partner := NewPartnerSnapshot()
	partner.Cards[1] = PartnerCard{NeedStandard: 1}

	result := Reconcile(local, partner)
	require.Len(t, result.Entries, 1)
	e := result.Entries[0]
	assert.Equal(t, "card-1", e.ID)
	assert.Equal(t, KindCard, e.Kind)
	assert.Equal(t, 2, e.SpareStandard)
	assert.Equal(t, 1, e.TradeMinusStandard)
	assert.Equal(t, 0, e.TradePlusStandard)
	assert.True(t, e.Flags.Spare)
	assert.True(t, e.Flags.TradeMinus)
	assert.False(t, e.Flags.TradePlus)
	assert.Equal(t, Summary{Total: 1, Spares: 1, TradeMinus: 1}, result.Summary)
}

func TestReconcile_KeepBothPlus(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
		owned(map[int][2]float64{}, dice), stubLabels{}, PolicyKeepBoth)
	partner := NewPartnerSnapshot()
	partner.Cards[1] = PartnerCard{SpareStandard: 3, SpareFoil: 2}

	result := Reconcile(local, partner)
	require.Len(t, result.Entries, 1)
	e := result.Entries[0]
	assert.Equal(t, 1, e.TradePlusStandard)
	assert.Equal(t, 1, e.TradePlusFoil)
	assert.LessOrEqual(t, e.TradePlusStandard, e.PartnerSpareStandard)
	assert.LessOrEqual(t, e.TradePlusFoil, e.PartnerSpareFoil)
	assert.False(t, e.FoilUpgradeForUs)
}

func TestReconcile_SingleCopyPrefersFoil(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
		owned(nil, dice), stubLabels{}, PolicySingleCopy)
	partner := NewPartnerSnapshot()
	partner.Cards[1] = PartnerCard{SpareStandard: 1, SpareFoil: 2}

	result := Reconcile(local, partner)
	require.Len(t, result.Entries, 1)
	e := result.Entries[0]
	assert.True(t, e.PreferFoil)
	assert.Equal(t, 0, e.TradePlusStandard)
	assert.Equal(t, 1, e.TradePlusFoil)
}

func TestReconcile_SingleCopyFallsBackToStandard(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
		owned(nil, dice), stubLabels{}, PolicySingleCopy)
	partner := NewPartnerSnapshot()
	partner.Cards[1] = PartnerCard{SpareStandard: 1}

	e := Reconcile(local, partner).Entries[0]
	assert.Equal(t, 1, e.TradePlusStandard)
	assert.Equal(t, 0, e.TradePlusFoil)
}

func TestReconcile_PartnerNeedAnyFoilFirst(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
		owned(map[int][2]float64{1: {2, 2}}, dice), stubLabels{}, PolicyKeepBoth)
	partner := NewPartnerSnapshot()
	partner.Cards[1] = PartnerCard{NeedStandard: 1, NeedAny: 1}

	e := Reconcile(local, partner).Entries[0]
	assert.Equal(t, 1, e.TradeMinusStandard)
	assert.Equal(t, 1, e.TradeMinusFoil)
}

func TestReconcile_FoilUpgrades(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")

	t.Run("for us", func(t *testing.T) {
		local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
			owned(map[int][2]float64{1: {1, 0}}, dice), stubLabels{}, PolicyKeepBoth)
		partner := NewPartnerSnapshot()
		partner.Cards[1] = PartnerCard{SpareFoil: 1}

		e := Reconcile(local, partner).Entries[0]
		assert.Equal(t, 1, e.TradePlusFoil)
		assert.True(t, e.FoilUpgradeForUs)
		assert.False(t, e.FoilUpgradeForPartner)
	})

	t.Run("for partner", func(t *testing.T) {
		local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
			owned(map[int][2]float64{1: {1, 2}}, dice), stubLabels{}, PolicyKeepBoth)
		partner := NewPartnerSnapshot()
		partner.Cards[1] = PartnerCard{NeedFoil: 1}

		e := Reconcile(local, partner).Entries[0]
		assert.Equal(t, 1, e.TradeMinusFoil)
		assert.True(t, e.FoilUpgradeForPartner)
		assert.False(t, e.FoilUpgradeForUs)
	})

	t.Run("not when dice are needed", func(t *testing.T) {
		local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", true)}, texts,
			owned(map[int][2]float64{1: {1, 0}}, nil), stubLabels{}, PolicyKeepBoth)
		partner := NewPartnerSnapshot()
		partner.Cards[1] = PartnerCard{SpareFoil: 1}

		e := Reconcile(local, partner).Entries[0]
		assert.Equal(t, 1, e.TradePlusFoil)
		assert.False(t, e.FoilUpgradeForUs)
	})
}

func TestReconcile_DiceBuckets(t *testing.T) {
	cards := []models.CardRecord{
		card(1, "Hulk", "Anger", "avx", false),
		card(2, "Hulk", "Annihilator", "avx", false),
	}
	texts := map[int]models.CardText{1: {CardPK: 1, MaxDice: 1}, 2: {CardPK: 2, MaxDice: 2}}
	local := BuildSnapshot(cards, texts,
		owned(map[int][2]float64{1: {1, 0}, 2: {1, 0}}, map[string]float64{"Hulk||avx": 5, "Thor||": 2}),
		stubLabels{}, PolicyKeepBoth)
	partner := NewPartnerSnapshot()
	partner.Dice["Hulk||avx"] = PartnerDice{Need: 4}

	result := Reconcile(local, partner)
	require.Len(t, result.Entries, 2)

	hulk := result.Entries[0]
	assert.Equal(t, "card-1", hulk.ID)
	assert.Equal(t, 3, hulk.DiceSpare)
	assert.Equal(t, 3, hulk.TradeMinusDice)
	assert.Equal(t, 4, hulk.PartnerDiceNeed)
	assert.True(t, hulk.Flags.Dice)
	assert.True(t, hulk.Flags.TradeMinus)

	thor := result.Entries[1]
	assert.Equal(t, "dice-Thor||Other", thor.ID)
	assert.Equal(t, KindDice, thor.Kind)
	assert.Equal(t, "Dice", thor.CardName)
	assert.Equal(t, 2, thor.DiceSpare)
	assert.True(t, thor.Flags.Dice)
	assert.True(t, thor.Flags.Spare)

	assert.Equal(t, Summary{Total: 2, Spares: 2, TradeMinus: 1}, result.Summary)
}

func TestReconcile_SkipsSettledCards(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", false)}, texts,
		owned(map[int][2]float64{1: {1, 0}}, dice), stubLabels{}, PolicyKeepBoth)

	result := Reconcile(local, nil)
	assert.Empty(t, result.Entries)
	assert.Equal(t, Summary{}, result.Summary)
	assert.NotNil(t, result.Unmatched)
}

func TestReconcile_SortAndNames(t *testing.T) {
	cards := []models.CardRecord{
		card(1, "thor", "Zap", "avx", false),
		card(2, "Hulk", "", "avx", false),
		card(3, "Hulk", "anger", "avx", false),
		card(4, "Hulk", "Anger", "", false),
	}
	cards[3].SetLabel = "Age of Ultron"
	local := BuildSnapshot(cards, nil, nil, stubLabels{}, PolicyKeepBoth)
	partner := NewPartnerSnapshot()
	partner.Unmatched = []RowIdentifier{{Set: "x", Character: "y", CardName: "z"}}
	partner.Totals = PartnerTotals{Rows: 4}

	result := Reconcile(local, partner)
	ids := make([]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"card-4", "card-3", "card-2", "card-1"}, ids)
	assert.Equal(t, "Unnamed", result.Entries[2].CardName)
	assert.Equal(t, 4, result.Summary.Total)
	assert.Equal(t, 4, result.Summary.Missing)
	assert.Equal(t, partner.Unmatched, result.Unmatched)
	assert.Equal(t, 4, result.PartnerTotals.Rows)
}

func TestReconcile_AllocationBounds(t *testing.T) {
	texts, dice := satisfiedDice("Hulk", "avx")
	runs := 0
	for _, policy := range []Policy{PolicyKeepBoth, PolicySingleCopy} {
		for _, hasFoil := range []bool{false, true} {
			for standard := 0; standard <= 3; standard++ {
				for foil := 0; foil <= 3; foil++ {
					if !hasFoil && foil > 0 {
						continue
					}
					local := BuildSnapshot([]models.CardRecord{card(1, "Hulk", "Anger", "avx", hasFoil)}, texts,
						owned(map[int][2]float64{1: {float64(standard), float64(foil)}}, dice), stubLabels{}, policy)

					for spareStandard := 0; spareStandard <= 2; spareStandard++ {
						for spareFoil := 0; spareFoil <= 2; spareFoil++ {
							for needs := 0; needs < 8; needs++ {
								p := PartnerCard{
									SpareStandard: spareStandard,
									SpareFoil:     spareFoil,
									NeedStandard:  needs & 1,
									NeedFoil:      needs >> 1 & 1,
									NeedAny:       needs >> 2 & 1,
								}
								partner := NewPartnerSnapshot()
								partner.Cards[1] = p

								runs++
								for _, e := range Reconcile(local, partner).Entries {
									if e.Kind != KindCard || e.CardPK != 1 {
										continue
									}
									assert.LessOrEqual(t, e.TradePlusStandard, min(e.NeedStandard+e.NeedAny, p.SpareStandard), "%+v", e)
									assert.LessOrEqual(t, e.TradePlusFoil, min(e.NeedFoil+e.NeedAny, p.SpareFoil), "%+v", e)
									assert.LessOrEqual(t, e.TradePlusStandard+e.TradePlusFoil, e.NeedStandard+e.NeedFoil+e.NeedAny, "%+v", e)
									assert.LessOrEqual(t, e.TradeMinusStandard, min(e.SpareStandard, p.NeedStandard+p.NeedAny), "%+v", e)
									assert.LessOrEqual(t, e.TradeMinusFoil, min(e.SpareFoil, p.NeedFoil+p.NeedAny), "%+v", e)
									assert.LessOrEqual(t, e.TradeMinusStandard+e.TradeMinusFoil, p.NeedStandard+p.NeedFoil+p.NeedAny, "%+v", e)
								}
							}
						}
					}
				}
			}
		}
	}
	assert.Equal(t, 2*(4+16)*9*8, runs)
}

package trade

import (
	"fmt"
	"sort"

	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// PartnerCard is what a partner can spare and needs of one card.
type PartnerCard struct {
	SpareStandard int `json:"spareStandard"`
	SpareFoil     int `json:"spareFoil"`
	NeedStandard  int `json:"needStandard"`
	NeedFoil      int `json:"needFoil"`
	NeedAny       int `json:"needAny"`
}

// PartnerDice is a partner's position in one dice bucket.
type PartnerDice struct {
	Spare    int `json:"spare"`
	Need     int `json:"need"`
	Owned    int `json:"owned"`
	Required int `json:"required"`
}

// RowIdentifier names a partner row that matched no card.
type RowIdentifier struct {
	Set       string `json:"set"`
	Character string `json:"character"`
	CardName  string `json:"cardName"`
}

// PartnerTotals sums every imported partner row.
type PartnerTotals struct {
	SpareStandard int `json:"spareStandard"`
	SpareFoil     int `json:"spareFoil"`
	SpareDice     int `json:"spareDice"`
	NeedStandard  int `json:"needStandard"`
	NeedFoil      int `json:"needFoil"`
	NeedAny       int `json:"needAny"`
	NeedDice      int `json:"needDice"`
	Rows          int `json:"rows"`
}

// PartnerSnapshot is an imported trade partner list.
type PartnerSnapshot struct {
	Cards     map[int]PartnerCard    `json:"cards"`
	Dice      map[string]PartnerDice `json:"dice"`
	Unmatched []RowIdentifier        `json:"unmatched"`
	Totals    PartnerTotals          `json:"totals"`
}

// NewPartnerSnapshot returns an empty partner snapshot.
func NewPartnerSnapshot() *PartnerSnapshot {
	return &PartnerSnapshot{
		Cards:     make(map[int]PartnerCard),
		Dice:      make(map[string]PartnerDice),
		Unmatched: []RowIdentifier{},
	}
}

// EntryKind distinguishes card entries from dice-only entries.
type EntryKind string

const (
	KindCard EntryKind = "card"
	KindDice EntryKind = "dice"
)

// Flags mark why an entry is listed.
type Flags struct {
	Spare      bool `json:"spare"`
	Missing    bool `json:"missing"`
	TradePlus  bool `json:"tradePlus"`
	TradeMinus bool `json:"tradeMinus"`
	Dice       bool `json:"dice"`
}

// Entry is one line of a reconciled trade list. TradePlus quantities flow
// from the partner to us, TradeMinus quantities from us to the partner.
type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	CardPK    int       `json:"cardPk,omitempty"`
	Character string    `json:"character"`
	CardName  string    `json:"cardName"`
	Set       string    `json:"set"`
	CardType  string    `json:"cardType,omitempty"`
	Cost      *int      `json:"cost"`

	SpareStandard int `json:"spareStandard"`
	SpareFoil     int `json:"spareFoil"`
	NeedStandard  int `json:"needStandard"`
	NeedFoil      int `json:"needFoil"`
	NeedAny       int `json:"needAny"`

	PartnerSpareStandard int `json:"partnerSpareStandard"`
	PartnerSpareFoil     int `json:"partnerSpareFoil"`
	PartnerNeedStandard  int `json:"partnerNeedStandard"`
	PartnerNeedFoil      int `json:"partnerNeedFoil"`
	PartnerNeedAny       int `json:"partnerNeedAny"`

	TradePlusStandard  int `json:"tradePlusStandard"`
	TradePlusFoil      int `json:"tradePlusFoil"`
	TradePlusDice      int `json:"tradePlusDice"`
	TradeMinusStandard int `json:"tradeMinusStandard"`
	TradeMinusFoil     int `json:"tradeMinusFoil"`
	TradeMinusDice     int `json:"tradeMinusDice"`

	DiceOwned        int `json:"diceOwned"`
	DiceRequired     int `json:"diceRequired"`
	DiceSpare        int `json:"diceSpare"`
	DiceNeed         int `json:"diceNeed"`
	PartnerDiceSpare int `json:"partnerDiceSpare"`
	PartnerDiceNeed  int `json:"partnerDiceNeed"`

	PreferFoil            bool  `json:"preferFoil"`
	FoilUpgradeForUs      bool  `json:"foilUpgradeForUs"`
	FoilUpgradeForPartner bool  `json:"foilUpgradeForPartner"`
	Flags                 Flags `json:"flags"`
}

// Summary counts entries per flag.
type Summary struct {
	Total      int `json:"total"`
	Spares     int `json:"spares"`
	Missing    int `json:"missing"`
	TradePlus  int `json:"tradePlus"`
	TradeMinus int `json:"tradeMinus"`
}

func (s *Summary) add(f Flags) {
	if f.Spare {
		s.Spares++
	}
	if f.Missing {
		s.Missing++
	}
	if f.TradePlus {
		s.TradePlus++
	}
	if f.TradeMinus {
		s.TradeMinus++
	}
}

// Result is a reconciled trade list.
type Result struct {
	Policy        Policy          `json:"policy"`
	Entries       []Entry         `json:"entries"`
	Summary       Summary         `json:"summary"`
	Unmatched     []RowIdentifier `json:"unmatched"`
	PartnerTotals PartnerTotals   `json:"partnerTotals"`
}

// Allocate takes as much of need as available covers and returns the taken
// amount and what is left available.
func Allocate(need, available int) (taken, remaining int) {
	if need <= 0 || available <= 0 {
		return 0, max(0, available)
	}
	taken = min(need, available)
	return taken, available - taken
}

// cardFlow is the result of allocating one card in both directions.
type cardFlow struct {
	plusStandard  int
	plusFoil      int
	minusStandard int
	minusFoil     int
}

// allocateCard fills my needs from the partner's spares, then the partner's
// needs from my spares. Explicit needs are served before need-any.
func allocateCard(d *CardDetail, p PartnerCard, policy Policy) cardFlow {
	var f cardFlow
	var taken int

	partnerStandard, partnerFoil := p.SpareStandard, p.SpareFoil
	if policy == PolicyKeepBoth {
		f.plusStandard, partnerStandard = Allocate(d.NeedStandard, partnerStandard)
		f.plusFoil, partnerFoil = Allocate(d.NeedFoil, partnerFoil)
	} else {
		f.plusStandard, partnerStandard = Allocate(d.NeedStandard, partnerStandard)

		anyRemaining := d.NeedAny
		if d.PreferFoil {
			taken, partnerFoil = Allocate(anyRemaining, partnerFoil)
			f.plusFoil += taken
			anyRemaining -= taken
		}
		taken, partnerStandard = Allocate(anyRemaining, partnerStandard)
		f.plusStandard += taken
		anyRemaining -= taken
		taken, partnerFoil = Allocate(anyRemaining, partnerFoil)
		f.plusFoil += taken

		taken, _ = Allocate(max(0, d.NeedFoil-f.plusFoil), partnerFoil)
		f.plusFoil += taken
	}

	myStandard, myFoil := d.SpareStandard, d.SpareFoil
	f.minusStandard, myStandard = Allocate(p.NeedStandard, myStandard)
	f.minusFoil, myFoil = Allocate(p.NeedFoil, myFoil)

	anyRemaining := p.NeedAny
	taken, _ = Allocate(anyRemaining, myFoil)
	f.minusFoil += taken
	anyRemaining -= taken
	taken, _ = Allocate(anyRemaining, myStandard)
	f.minusStandard += taken

	return f
}

// Reconcile merges the local snapshot with a partner snapshot. Entries are
// listed when something is spare, missing or can be traded; dice buckets
// without any card-specific flow are listed once per bucket.
func Reconcile(local *Snapshot, partner *PartnerSnapshot) *Result {
	if partner == nil {
		partner = NewPartnerSnapshot()
	}
	result := &Result{
		Policy:        local.Policy,
		Entries:       []Entry{},
		Unmatched:     partner.Unmatched,
		PartnerTotals: partner.Totals,
	}
	if result.Unmatched == nil {
		result.Unmatched = []RowIdentifier{}
	}

	pks := make([]int, 0, len(local.CardDetails))
	for pk := range local.CardDetails {
		pks = append(pks, pk)
	}
	sort.Ints(pks)

	diceOnlyKeys := make(map[string]struct{})
	for _, pk := range pks {
		d := local.CardDetails[pk]
		p := partner.Cards[pk]
		pd := partner.Dice[d.DiceKey]

		flow := allocateCard(d, p, local.Policy)

		var dice DiceInfo
		hasDice := d.Dice != nil
		if hasDice {
			dice = *d.Dice
		}
		plusDice, minusDice := 0, 0
		if hasDice {
			plusDice = min(dice.Need, pd.Spare)
			minusDice = min(dice.Spare, pd.Need)
		}

		flags := Flags{
			Spare:      d.SpareStandard > 0 || d.SpareFoil > 0 || dice.Spare > 0,
			Missing:    d.NeedStandard > 0 || d.NeedFoil > 0 || d.NeedAny > 0 || dice.Need > 0,
			TradePlus:  flow.plusStandard > 0 || flow.plusFoil > 0 || plusDice > 0,
			TradeMinus: flow.minusStandard > 0 || flow.minusFoil > 0 || minusDice > 0,
			Dice:       hasDice,
		}
		if !(flags.Spare || flags.Missing || flags.TradePlus || flags.TradeMinus) {
			continue
		}

		cardSpecific := d.SpareStandard > 0 || d.SpareFoil > 0 ||
			d.NeedStandard > 0 || d.NeedFoil > 0 || d.NeedAny > 0 ||
			flow.plusStandard > 0 || flow.plusFoil > 0 ||
			flow.minusStandard > 0 || flow.minusFoil > 0
		if !cardSpecific && hasDice {
			if _, seen := diceOnlyKeys[d.DiceKey]; seen {
				continue
			}
			diceOnlyKeys[d.DiceKey] = struct{}{}
		}

		noOtherFlow := plusDice == 0 && minusDice == 0 && dice.Need <= 0 && dice.Spare <= 0 && pd.Need <= 0
		foilUpgradeForUs := d.NeedFoil > 0 && d.NeedStandard <= 0 && d.NeedAny <= 0 &&
			flow.plusFoil > 0 && flow.plusStandard == 0 &&
			flow.minusStandard == 0 && flow.minusFoil == 0 &&
			p.NeedStandard <= 0 && p.NeedFoil <= 0 && p.NeedAny <= 0 &&
			noOtherFlow
		foilUpgradeForPartner := p.NeedFoil > 0 && p.NeedStandard <= 0 && p.NeedAny <= 0 &&
			flow.minusFoil > 0 && flow.minusStandard == 0 &&
			flow.plusStandard == 0 && flow.plusFoil == 0 &&
			d.NeedStandard <= 0 && d.NeedAny <= 0 && d.NeedFoil <= 0 &&
			noOtherFlow

		cardName := d.CardName
		if cardName == "" {
			cardName = "Unnamed"
		}
		entry := Entry{
			ID:                    fmt.Sprintf("card-%d", d.CardPK),
			Kind:                  KindCard,
			CardPK:                d.CardPK,
			Character:             d.Character,
			CardName:              cardName,
			Set:                   d.Set,
			CardType:              d.CardType,
			Cost:                  d.Cost,
			SpareStandard:         d.SpareStandard,
			SpareFoil:             d.SpareFoil,
			NeedStandard:          d.NeedStandard,
			NeedFoil:              d.NeedFoil,
			NeedAny:               d.NeedAny,
			PartnerSpareStandard:  p.SpareStandard,
			PartnerSpareFoil:      p.SpareFoil,
			PartnerNeedStandard:   p.NeedStandard,
			PartnerNeedFoil:       p.NeedFoil,
			PartnerNeedAny:        p.NeedAny,
			TradePlusStandard:     flow.plusStandard,
			TradePlusFoil:         flow.plusFoil,
			TradePlusDice:         plusDice,
			TradeMinusStandard:    flow.minusStandard,
			TradeMinusFoil:        flow.minusFoil,
			TradeMinusDice:        minusDice,
			DiceOwned:             dice.Owned,
			DiceRequired:          dice.Required,
			DiceSpare:             dice.Spare,
			DiceNeed:              dice.Need,
			PartnerDiceSpare:      pd.Spare,
			PartnerDiceNeed:       pd.Need,
			PreferFoil:            d.PreferFoil,
			FoilUpgradeForUs:      foilUpgradeForUs,
			FoilUpgradeForPartner: foilUpgradeForPartner,
			Flags:                 flags,
		}
		result.Entries = append(result.Entries, entry)
		result.Summary.add(flags)
	}

	for _, e := range local.DiceEntries {
		if e.RepCardPK != nil {
			continue
		}
		pd := partner.Dice[e.Key]
		plusDice := min(e.Need, pd.Spare)
		minusDice := min(e.Spare, pd.Need)
		flags := Flags{
			Spare:      e.Spare > 0,
			Missing:    e.Need > 0,
			TradePlus:  plusDice > 0,
			TradeMinus: minusDice > 0,
			Dice:       true,
		}
		if !(flags.Spare || flags.Missing || flags.TradePlus || flags.TradeMinus) {
			continue
		}
		result.Entries = append(result.Entries, Entry{
			ID:               "dice-" + e.Key,
			Kind:             KindDice,
			Character:        e.Character,
			CardName:         "Dice",
			Set:              e.Set,
			TradePlusDice:    plusDice,
			TradeMinusDice:   minusDice,
			DiceOwned:        e.Owned,
			DiceRequired:     e.Required,
			DiceSpare:        e.Spare,
			DiceNeed:         e.Need,
			PartnerDiceSpare: pd.Spare,
			PartnerDiceNeed:  pd.Need,
			Flags:            flags,
		})
		result.Summary.add(flags)
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		a, b := &result.Entries[i], &result.Entries[j]
		if c := tokens.CompareFold(a.Character, b.Character); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.Set, b.Set); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.CardName, b.CardName); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	result.Summary.Total = len(result.Entries)
	return result
}

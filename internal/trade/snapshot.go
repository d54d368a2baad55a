// Package trade computes what a collection can spare and still needs, and
// reconciles that against a trade partner's spares and needs.
package trade

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// Policy decides how many copies of a card a collection wants to keep.
type Policy int

const (
	// PolicyKeepBoth keeps one standard copy and, when the card has a foil
	// print, one foil copy.
	PolicyKeepBoth Policy = iota
	// PolicySingleCopy keeps one copy of either print, preferring foil.
	PolicySingleCopy
)

// String returns the policy name used in URLs and config.
func (p Policy) String() string {
	if p == PolicySingleCopy {
		return "single"
	}
	return "both"
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "keep-both", "a":
		return PolicyKeepBoth, nil
	case "single", "single-copy", "b":
		return PolicySingleCopy, nil
	default:
		return PolicyKeepBoth, fmt.Errorf("unknown trade policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SetLabeler returns the set label shown for a card.
type SetLabeler interface {
	SetDisplay(card *models.CardRecord) string
	SetGroupLabel(group string) string
}

// DiceInfo is the dice position of a card's bucket.
type DiceInfo struct {
	Owned    int `json:"owned"`
	Required int `json:"required"`
	Spare    int `json:"spare"`
	Need     int `json:"need"`
}

// CardDetail is the trade position of one card.
type CardDetail struct {
	CardPK        int       `json:"cardPk"`
	Set           string    `json:"set"`
	GroupLabel    string    `json:"groupLabel"`
	Character     string    `json:"character"`
	CardName      string    `json:"cardName"`
	CardType      string    `json:"cardType"`
	Cost          *int      `json:"cost"`
	StandardOwned int       `json:"standardOwned"`
	FoilOwned     int       `json:"foilOwned"`
	SpareStandard int       `json:"spareStandard"`
	SpareFoil     int       `json:"spareFoil"`
	NeedStandard  int       `json:"needStandard"`
	NeedFoil      int       `json:"needFoil"`
	NeedAny       int       `json:"needAny"`
	PreferFoil    bool      `json:"preferFoil"`
	HasFoil       bool      `json:"hasFoil"`
	DiceKey       string    `json:"diceKey"`
	Dice          *DiceInfo `json:"dice,omitempty"`
}

// DiceEntry is the trade position of one character and set group bucket.
type DiceEntry struct {
	Key        string `json:"key"`
	Character  string `json:"character"`
	Set        string `json:"set"`
	GroupLabel string `json:"groupLabel"`
	Required   int    `json:"required"`
	Owned      int    `json:"owned"`
	Spare      int    `json:"spare"`
	Need       int    `json:"need"`
	RepCardPK  *int   `json:"repCardPk"` // nil for dice without a card
}

// Snapshot is the local trade position under one policy.
type Snapshot struct {
	Policy      Policy               `json:"policy"`
	CardDetails map[int]*CardDetail  `json:"cardDetails"`
	DiceEntries []DiceEntry          `json:"diceEntries"`
	NeedCards   map[int]*CardDetail  `json:"-"`
	SpareCards  map[int]*CardDetail  `json:"-"`
	NeedDice    map[string]DiceEntry `json:"-"`
	SpareDice   map[string]DiceEntry `json:"-"`
	DiceByCard  map[int]DiceEntry    `json:"-"`
}

// Positions are the spare and need quantities of one card.
type Positions struct {
	SpareStandard int
	SpareFoil     int
	NeedStandard  int
	NeedFoil      int
	NeedAny       int
	PreferFoil    bool
}

// ComputePositions applies policy to the owned counts of one card.
func ComputePositions(standardOwned, foilOwned int, hasFoil bool, policy Policy) Positions {
	standardOwned = max(0, standardOwned)
	foilOwned = max(0, foilOwned)

	baseNeedStandard := max(0, 1-standardOwned)
	baseNeedFoil := 0
	if hasFoil {
		baseNeedFoil = max(0, 1-foilOwned)
	}

	var p Positions
	if policy == PolicyKeepBoth {
		desiredFoil := 0
		if hasFoil {
			desiredFoil = 1
		}
		p.NeedStandard = baseNeedStandard
		p.NeedFoil = baseNeedFoil
		p.SpareStandard = max(0, standardOwned-1)
		p.SpareFoil = max(0, foilOwned-desiredFoil)
		return p
	}

	const desiredAny = 1
	p.NeedFoil = baseNeedFoil
	if hasFoil {
		p.NeedAny = max(0, desiredAny-(standardOwned+foilOwned))
	} else {
		p.NeedStandard = baseNeedStandard
	}

	keepFoil := min(foilOwned, desiredAny)
	keepStandard := min(standardOwned, desiredAny-keepFoil)
	p.SpareFoil = foilOwned - keepFoil
	p.SpareStandard = standardOwned - keepStandard
	p.PreferFoil = hasFoil && p.NeedAny > 0
	return p
}

type diceRequirement struct {
	required   int
	character  string
	groupLabel string
	set        string
	repPK      int
	repMaxDice int
	repName    string
	hasRep     bool
}

// BuildSnapshot computes the trade position of every card with a character
// and of every dice bucket, including buckets with owned dice but no card.
func BuildSnapshot(cards []models.CardRecord, texts map[int]models.CardText, owned *collection.Snapshot, labels SetLabeler, policy Policy) *Snapshot {
	if owned == nil {
		owned = collection.EmptySnapshot()
	}
	snap := &Snapshot{
		Policy:      policy,
		CardDetails: make(map[int]*CardDetail, len(cards)),
		NeedCards:   make(map[int]*CardDetail),
		SpareCards:  make(map[int]*CardDetail),
		NeedDice:    make(map[string]DiceEntry),
		SpareDice:   make(map[string]DiceEntry),
		DiceByCard:  make(map[int]DiceEntry),
	}

	requirements := make(map[string]*diceRequirement)
	for i := range cards {
		card := &cards[i]
		character := strings.TrimSpace(card.CharacterName)
		if character == "" {
			continue
		}
		groupLabel := card.GroupLabel()
		setDisplay := labels.SetDisplay(card)
		key := models.DiceKey(character, groupLabel)
		maxDice := models.MaxDiceFor(texts, card.CardPK)

		req, ok := requirements[key]
		if !ok {
			req = &diceRequirement{character: character, groupLabel: groupLabel, set: setDisplay}
			requirements[key] = req
		}
		if maxDice > req.required {
			req.required = maxDice
		}
		if !req.hasRep || representativeBetter(maxDice, card.CardName, card.CardPK, req) {
			req.hasRep = true
			req.repPK = card.CardPK
			req.repMaxDice = maxDice
			req.repName = strings.ToLower(card.CardName)
		}

		counts := owned.Card(card.CardPK)
		pos := ComputePositions(counts.Standard, counts.Foil, card.HasFoil, policy)
		snap.CardDetails[card.CardPK] = &CardDetail{
			CardPK:        card.CardPK,
			Set:           setDisplay,
			GroupLabel:    groupLabel,
			Character:     character,
			CardName:      card.CardName,
			CardType:      card.TypeName,
			Cost:          card.Cost,
			StandardOwned: counts.Standard,
			FoilOwned:     counts.Foil,
			SpareStandard: pos.SpareStandard,
			SpareFoil:     pos.SpareFoil,
			NeedStandard:  pos.NeedStandard,
			NeedFoil:      pos.NeedFoil,
			NeedAny:       pos.NeedAny,
			PreferFoil:    pos.PreferFoil,
			HasFoil:       card.HasFoil,
			DiceKey:       key,
		}
	}

	for key := range owned.Dice {
		if _, ok := requirements[key]; ok {
			continue
		}
		character, group := models.SplitDiceKey(key)
		if group == "" {
			group = models.OtherSetGroup
		}
		requirements[key] = &diceRequirement{character: character, groupLabel: group, set: group}
	}

	snap.DiceEntries = make([]DiceEntry, 0, len(requirements))
	for key, req := range requirements {
		ownedDice := max(0, owned.Dice[key])
		entry := DiceEntry{
			Key:        key,
			Character:  req.character,
			Set:        req.set,
			GroupLabel: req.groupLabel,
			Required:   req.required,
			Owned:      ownedDice,
			Spare:      max(0, ownedDice-req.required),
			Need:       max(0, req.required-ownedDice),
		}
		if req.hasRep {
			pk := req.repPK
			entry.RepCardPK = &pk
		}
		snap.DiceEntries = append(snap.DiceEntries, entry)
	}
	sort.Slice(snap.DiceEntries, func(i, j int) bool {
		a, b := &snap.DiceEntries[i], &snap.DiceEntries[j]
		if c := tokens.CompareFold(a.Character, b.Character); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.Set, b.Set); c != 0 {
			return c < 0
		}
		return a.Key < b.Key
	})

	byKey := make(map[string]DiceEntry, len(snap.DiceEntries))
	for _, entry := range snap.DiceEntries {
		byKey[entry.Key] = entry
		if entry.Need > 0 {
			snap.NeedDice[entry.Key] = entry
		}
		if entry.Spare > 0 {
			snap.SpareDice[entry.Key] = entry
		}
		if entry.RepCardPK != nil {
			snap.DiceByCard[*entry.RepCardPK] = entry
		}
	}

	for pk, detail := range snap.CardDetails {
		if entry, ok := byKey[detail.DiceKey]; ok {
			detail.Dice = &DiceInfo{Owned: entry.Owned, Required: entry.Required, Spare: entry.Spare, Need: entry.Need}
		}
		if detail.NeedStandard > 0 || detail.NeedFoil > 0 || detail.NeedAny > 0 {
			snap.NeedCards[pk] = detail
		}
		if detail.SpareStandard > 0 || detail.SpareFoil > 0 {
			snap.SpareCards[pk] = detail
		}
	}

	return snap
}

// representativeBetter reports whether a card should replace the current
// representative of its dice bucket: a higher dice rating wins, then the
// alphabetically first non-blank card name, then the lower card pk.
func representativeBetter(maxDice int, cardName string, cardPK int, req *diceRequirement) bool {
	if maxDice != req.repMaxDice {
		return maxDice > req.repMaxDice
	}
	name := strings.ToLower(cardName)
	switch {
	case name != "" && req.repName == "":
		return true
	case name == "" && req.repName != "":
		return false
	case name != req.repName:
		return name < req.repName
	}
	return cardPK < req.repPK
}

// SortedCardDetails returns the card details ordered by character, set and
// card name.
func (s *Snapshot) SortedCardDetails() []*CardDetail {
	out := make([]*CardDetail, 0, len(s.CardDetails))
	for _, d := range s.CardDetails {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := tokens.CompareFold(a.Character, b.Character); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.Set, b.Set); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.CardName, b.CardName); c != 0 {
			return c < 0
		}
		return a.CardPK < b.CardPK
	})
	return out
}

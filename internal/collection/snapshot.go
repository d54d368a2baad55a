// Package collection holds the user's ownership counts: the immutable
// Snapshot projection used by filtering, statistics and trading, and the
// Store that applies mutations and persists them.
package collection

import (
	"math"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// Counts is the number of standard and foil copies owned of one card.
type Counts struct {
	Standard int `json:"standard"`
	Foil     int `json:"foil"`
}

// Owned reports whether any print is owned.
func (c Counts) Owned() bool {
	return c.Standard > 0 || c.Foil > 0
}

// Snapshot is a read-only view of ownership at one version. Absent keys
// read as zero.
type Snapshot struct {
	Version uint64         `json:"version"`
	Cards   map[int]Counts `json:"cards"`
	Dice    map[string]int `json:"dice"` // keyed by models.DiceKey
}

// EmptySnapshot returns a snapshot with no ownership.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Cards: map[int]Counts{}, Dice: map[string]int{}}
}

// BuildSnapshot projects raw user database rows into a Snapshot. Counts are
// rounded and clamped at zero, rows with a non-positive card pk or a blank
// character are skipped, and blank set groups become "Other". The result
// does not depend on row order.
func BuildSnapshot(cardRows []models.CollectionRow, diceRows []models.DiceRow) *Snapshot {
	s := &Snapshot{
		Cards: make(map[int]Counts, len(cardRows)),
		Dice:  make(map[string]int, len(diceRows)),
	}
	for _, row := range cardRows {
		if row.CardPK <= 0 {
			continue
		}
		s.Cards[row.CardPK] = Counts{
			Standard: normalizeCount(row.HaveCards),
			Foil:     normalizeCount(row.HaveFoil),
		}
	}
	for _, row := range diceRows {
		character := strings.TrimSpace(row.Character)
		if character == "" {
			continue
		}
		key := models.DiceKey(character, normalizeGroup(row.SetGroup))
		if n := normalizeCount(row.Count); n > s.Dice[key] {
			s.Dice[key] = n
		} else if _, ok := s.Dice[key]; !ok {
			s.Dice[key] = n
		}
	}
	return s
}

func normalizeCount(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return tokens.RoundCount(*v)
}

func normalizeGroup(group string) string {
	if g := strings.TrimSpace(group); g != "" {
		return g
	}
	return models.OtherSetGroup
}

// Card returns the counts of a card.
func (s *Snapshot) Card(cardPK int) Counts {
	return s.Cards[cardPK]
}

// Owns reports whether any print of the card is owned.
func (s *Snapshot) Owns(cardPK int) bool {
	return s.Cards[cardPK].Owned()
}

// DiceCount returns the dice owned for a character in a set group.
func (s *Snapshot) DiceCount(character, setGroup string) int {
	if character == "" {
		return 0
	}
	return s.Dice[models.DiceKey(character, setGroup)]
}

// DiceForCard returns the dice owned for the card's character and set group.
func (s *Snapshot) DiceForCard(card *models.CardRecord) int {
	return s.DiceCount(strings.TrimSpace(card.CharacterName), card.GroupLabel())
}

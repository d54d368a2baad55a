package models

import (
	"strings"
	"time"
)

// diceKeySeparator joins the character and set group of a dice key.
const diceKeySeparator = "||"

// DiceKey identifies a dice bucket: dice are owned per character and set
// group, not per card.
func DiceKey(character, setGroup string) string {
	return character + diceKeySeparator + setGroup
}

// SplitDiceKey splits a dice key into its character and set group.
func SplitDiceKey(key string) (character, setGroup string) {
	character, setGroup, _ = strings.Cut(key, diceKeySeparator)
	return character, setGroup
}

// CollectionRow is a collection row as read back from the user database.
type CollectionRow struct {
	CardPK    int
	HaveCards *float64 // Nullable
	HaveFoil  *float64 // Nullable
}

// DiceRow is a collection_dice row as read back from the user database.
type DiceRow struct {
	Character string
	SetGroup  string
	Count     *float64 // Nullable
}

// CollectionEntry is a normalized per-card ownership count.
type CollectionEntry struct {
	CardPK   int `json:"card_pk"`
	Standard int `json:"standard"` // have_cards
	Foil     int `json:"foil"`     // have_foil
}

// DiceCount is a normalized dice count for one character and set group.
type DiceCount struct {
	Character string `json:"character"`
	SetGroup  string `json:"set_group"`
	Count     int    `json:"count"`
}

// Team is a named roster of cards.
type Team struct {
	ID        int       `json:"team_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamCard is a card on a team with the dice committed to it.
type TeamCard struct {
	TeamID    int `json:"team_id"`
	CardPK    int `json:"card_pk"`
	DiceCount int `json:"dice_count"`
}

package models

import "strings"

// DefaultMaxDice is the dice rating assumed for cards without one. It is
// also the per-team dice cap.
const DefaultMaxDice = 20

// OtherSetGroup is the set group used for cards and dice without one.
const OtherSetGroup = "Other"

// CardRecord is one printed card as exposed by the reference card_rows view.
// Blank strings stand in for NULL columns.
type CardRecord struct {
	CardPK        int    `json:"card_pk"`
	SetID         int    `json:"set_id"`
	SetLabel      string `json:"set_label"`
	SetGroup      string `json:"set_group"`
	Universe      string `json:"universe"`
	CardNumber    string `json:"card_number"`
	CharacterName string `json:"character_name"`
	CardName      string `json:"card_name"`
	Cost          *int   `json:"cost"` // Nullable
	EnergyCode    string `json:"energy_code"`
	EnergyTokens  string `json:"energy_tokens"` // Comma separated
	TypeName      string `json:"type_name"`
	Rarity        string `json:"rarity"`
	RarityRank    *int   `json:"rarity_rank"` // Nullable
	Gender        string `json:"gender"`
	AffTokens     string `json:"aff_tokens"`   // Comma separated
	AlignTokens   string `json:"align_tokens"` // Comma separated
	HasErrata     bool   `json:"has_errata"`
	HasFoil       bool   `json:"has_foil"`
}

// GroupLabel returns the set group a card's dice are counted under: the
// trimmed set group, else the trimmed set label, else "Other".
func (c *CardRecord) GroupLabel() string {
	if g := strings.TrimSpace(c.SetGroup); g != "" {
		return g
	}
	if l := strings.TrimSpace(c.SetLabel); l != "" {
		return l
	}
	return OtherSetGroup
}

// DisplayLabel returns the label used for grouping in card lists: the set
// group, else the set label, else "".
func (c *CardRecord) DisplayLabel() string {
	if c.SetGroup != "" {
		return c.SetGroup
	}
	return c.SetLabel
}

// CardText holds the searchable text and dice details from the cards table.
// Text fields are stored lowercased.
type CardText struct {
	CardPK    int
	Text      string
	Global    string
	Name      string
	Subname   string
	MaxDice   int
	DiceFaces string
}

// MaxDiceFor returns the dice rating to use for a card, falling back to
// DefaultMaxDice when the rating is missing or not positive.
func MaxDiceFor(texts map[int]CardText, cardPK int) int {
	if t, ok := texts[cardPK]; ok && t.MaxDice > 0 {
		return t.MaxDice
	}
	return DefaultMaxDice
}

// SetRow is one row of the sets table.
type SetRow struct {
	SetID    int
	SetGroup string
	SetAlt   string
	FullName string
	Universe string
}

// Format is a play format that may ban sets or cards.
type Format struct {
	ID    int     `json:"id"`
	Code  *string `json:"code"`  // Nullable
	Name  string  `json:"name"`
	Notes *string `json:"notes"` // Nullable
}

// FormatBanRow links a format to a banned set or card. Exactly one of SetID
// and CardPK is set.
type FormatBanRow struct {
	FormatID int
	SetID    *int
	CardPK   *int
}

// AffiliationDefinition is one row of the affiliation_icons table.
type AffiliationDefinition struct {
	Token       string  `json:"token"`
	File        string  `json:"file"`
	Alt         *string `json:"alt"`
	IsComposite bool    `json:"is_composite"`
	Components  *string `json:"components"` // Comma separated component tokens
}

// Alignment is a selectable alignment token.
type Alignment struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// TokenIcon maps a text token to its icon file.
type TokenIcon struct {
	Token string  `json:"token"`
	File  string  `json:"file"`
	Alt   *string `json:"alt"`
}

// EnergyCode maps an energy code to its icon.
type EnergyCode struct {
	Code string  `json:"code"`
	File *string `json:"file"`
	Alt  *string `json:"alt"`
}

// ReferenceRows bundles the raw reference rows the vocabulary is built from.
type ReferenceRows struct {
	Cards        []CardRecord
	CardSetIDs   []int // set ids present in the cards table
	Sets         []SetRow
	Formats      []Format
	FormatBans   []FormatBanRow
	Affiliations []AffiliationDefinition
	Alignments   []Alignment
	TokenIcons   []TokenIcon
	EnergyCodes  []EnergyCode
}

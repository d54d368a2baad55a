// Package proxydice finds cards whose dice share the same faces, so one die
// can stand in for another.
package proxydice

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// MaxGroups caps the groups returned by a text search.
const MaxGroups = 120

// Entry is one character's die.
type Entry struct {
	CardPK      int    `json:"cardPk"`
	Character   string `json:"character"`
	SetCode     string `json:"setCode"`
	DiceKey     string `json:"diceKey"`     // face digits only
	DiceDisplay string `json:"diceDisplay"` // digits in groups of three
	searchText  string
}

// Group is a die and every other character printed with the same faces.
type Group struct {
	DiceKey     string  `json:"diceKey"`
	DiceDisplay string  `json:"diceDisplay"`
	Primary     Entry   `json:"primary"`
	Proxies     []Entry `json:"proxies"`
}

// Index holds every die with known faces.
type Index struct {
	entries []Entry
	byDice  map[string][]Entry
}

// FormatDice strips everything but digits from raw faces and groups the
// digits by three for display.
func FormatDice(raw string) (key, display string) {
	key = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if key == "" {
		return "", ""
	}
	parts := make([]string, 0, len(key)/3+1)
	for i := 0; i < len(key); i += 3 {
		parts = append(parts, key[i:min(i+3, len(key))])
	}
	return key, strings.Join(parts, " ")
}

// Build indexes the dice of every card whose faces are known. Dice repeated
// for a character in the same set are listed once.
func Build(cards []models.CardRecord, texts map[int]models.CardText) *Index {
	idx := &Index{byDice: make(map[string][]Entry)}
	seen := make(map[string]struct{})

	for i := range cards {
		card := &cards[i]
		text, ok := texts[card.CardPK]
		if !ok || strings.TrimSpace(text.DiceFaces) == "" {
			continue
		}
		key, display := FormatDice(text.DiceFaces)
		if key == "" {
			continue
		}
		setCode := strings.ToUpper(card.SetGroup)
		if setCode == "" {
			setCode = card.SetLabel
		}
		dedupe := key + "||" + strings.ToLower(card.CharacterName) + "||" + setCode
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}

		search := make([]string, 0, 3)
		for _, s := range []string{card.CharacterName, setCode, display} {
			if s != "" {
				search = append(search, s)
			}
		}
		idx.entries = append(idx.entries, Entry{
			CardPK:      card.CardPK,
			Character:   card.CharacterName,
			SetCode:     setCode,
			DiceKey:     key,
			DiceDisplay: display,
			searchText:  strings.ToLower(strings.Join(search, " ")),
		})
	}

	sort.SliceStable(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if c := tokens.CompareFold(a.Character, b.Character); c != 0 {
			return c < 0
		}
		if c := tokens.CompareFold(a.SetCode, b.SetCode); c != 0 {
			return c < 0
		}
		return a.DiceKey < b.DiceKey
	})

	for _, e := range idx.entries {
		idx.byDice[e.DiceKey] = append(idx.byDice[e.DiceKey], e)
	}
	for _, list := range idx.byDice {
		sort.SliceStable(list, func(i, j int) bool {
			if c := tokens.CompareFold(list[i].Character, list[j].Character); c != 0 {
				return c < 0
			}
			if c := tokens.CompareFold(list[i].SetCode, list[j].SetCode); c != 0 {
				return c < 0
			}
			return list[i].CardPK < list[j].CardPK
		})
	}
	return idx
}

// Len returns the number of indexed dice.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Search finds dice by face digits or by text. A query of digits and spaces
// matches every die with exactly those faces. Any other query matches the
// character, set code and faces of each die as a substring; each match
// brings its die's proxies.
func (idx *Index) Search(query string) []Group {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []Group{}
	}

	digits := strings.Join(strings.FieldsFunc(trimmed, unicode.IsSpace), "")
	if isDigits(digits) {
		matches := idx.byDice[digits]
		if len(matches) == 0 {
			return []Group{}
		}
		return []Group{newGroup(matches[0], matches)}
	}

	lower := strings.ToLower(trimmed)
	groups := []Group{}
	seen := make(map[string]struct{})
	for _, e := range idx.entries {
		if !strings.Contains(e.searchText, lower) {
			continue
		}
		if _, ok := seen[e.DiceKey]; ok {
			continue
		}
		seen[e.DiceKey] = struct{}{}
		groups = append(groups, newGroup(e, idx.byDice[e.DiceKey]))
		if len(groups) >= MaxGroups {
			break
		}
	}
	return groups
}

func newGroup(primary Entry, all []Entry) Group {
	g := Group{DiceKey: primary.DiceKey, DiceDisplay: primary.DiceDisplay, Primary: primary, Proxies: []Entry{}}
	for _, e := range all {
		if e.CardPK != primary.CardPK {
			g.Proxies = append(g.Proxies, e)
		}
	}
	return g
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

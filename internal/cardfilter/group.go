package cardfilter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

const (
	basicActionTitle = "Basic Action"
	basicActionKey   = "BAC"
	characterKey     = "CHAR"
	missingRank      = 9999
)

// Group is a display bucket of cards: one character in one set, or all
// Basic Actions of one set.
type Group struct {
	Key           string              `json:"key"`
	Title         string              `json:"title"`
	IsBasicAction bool                `json:"isBasicAction"`
	Character     string              `json:"character"`
	GroupLabel    string              `json:"groupLabel"`
	Items         []models.CardRecord `json:"items"`
}

// GroupCards buckets cards and sorts both the buckets and their items. The
// result depends only on the set of cards, not their order.
func GroupCards(cards []models.CardRecord) []Group {
	byKey := make(map[string]*Group)
	for _, card := range cards {
		isBA := tokens.IsBasicAction(card.TypeName)
		label := card.DisplayLabel()

		var key, title string
		if isBA {
			key = basicActionKey + "||" + label + "||" + basicActionKey
			title = fmt.Sprintf("%s (%s)", basicActionTitle, label)
		} else {
			key = characterKey + "||" + label + "||" + card.CharacterName
			title = fmt.Sprintf("%s (%s)", card.CharacterName, label)
		}

		g, ok := byKey[key]
		if !ok {
			g = &Group{
				Key:           key,
				Title:         title,
				IsBasicAction: isBA,
				Character:     card.CharacterName,
				GroupLabel:    label,
			}
			byKey[key] = g
		}
		g.Items = append(g.Items, card)
	}

	groups := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.Items, func(i, j int) bool { return itemLess(&g.Items[i], &g.Items[j]) })
		if g.IsBasicAction {
			g.Character = ""
		}
		groups = append(groups, *g)
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := &groups[i], &groups[j]
		if a.IsBasicAction != b.IsBasicAction {
			return a.IsBasicAction
		}
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c < 0
		}
		return a.Key < b.Key
	})
	return groups
}

func itemLess(a, b *models.CardRecord) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	if c := tokens.NaturalCompare(a.CardNumber, b.CardNumber); c != 0 {
		return c < 0
	}
	return a.CardPK < b.CardPK
}

func rank(c *models.CardRecord) int {
	if c.RarityRank == nil {
		return missingRank
	}
	return *c.RarityRank
}

// Flatten returns the items of groups in display order.
func Flatten(groups []Group) []models.CardRecord {
	n := 0
	for _, g := range groups {
		n += len(g.Items)
	}
	out := make([]models.CardRecord, 0, n)
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

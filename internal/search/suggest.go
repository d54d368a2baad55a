// Package search ranks character and card names for type-ahead.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// DefaultLimit is the number of suggestions returned when no limit is given.
const DefaultLimit = 10

// Kind says what a suggestion names.
type Kind string

const (
	KindCharacter Kind = "character"
	KindCard      Kind = "card"
)

// Suggestion is one ranked name.
type Suggestion struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	CardPK int    `json:"cardPk"` // first card with this name
	Score  int    `json:"score"`
}

// candidates implements fuzzy.Source.
type candidates []Suggestion

func (c candidates) Len() int {
	return len(c)
}

func (c candidates) String(i int) string {
	return c[i].Text
}

// Suggest returns up to limit character and card names matching query as a
// fuzzy subsequence, best match first. Each distinct name is listed once.
func Suggest(query string, cards []models.CardRecord, limit int) []Suggestion {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Suggestion{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	items := candidates{}
	seen := make(map[string]struct{})
	add := func(kind Kind, text string, pk int) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		key := string(kind) + "|" + strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		items = append(items, Suggestion{Kind: kind, Text: text, CardPK: pk})
	}
	for i := range cards {
		add(KindCharacter, cards[i].CharacterName, cards[i].CardPK)
	}
	for i := range cards {
		add(KindCard, cards[i].CardName, cards[i].CardPK)
	}

	matches := fuzzy.FindFrom(query, items)
	out := make([]Suggestion, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		s := items[m.Index]
		s.Score = m.Score
		out = append(out, s)
	}
	return out
}

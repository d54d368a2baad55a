// Package cardfilter filters card rows against a multi-axis selection and
// groups the result for display.
package cardfilter

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/ramonehamilton/prep-area/internal/affiliation"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// Mode selects which text a query is matched against.
type Mode string

const (
	ModeName   Mode = "name"
	ModeText   Mode = "text"
	ModeGlobal Mode = "global"
)

// Selection is the active filter. Empty axes do not constrain.
type Selection struct {
	Query        string   `json:"query"`
	Mode         Mode     `json:"mode"`
	SetGroups    []string `json:"setGroups,omitempty"`
	Energies     []string `json:"energies,omitempty"`
	Universes    []string `json:"universes,omitempty"`
	Rarities     []string `json:"rarities,omitempty"`
	Types        []string `json:"types,omitempty"`
	Genders      []string `json:"genders,omitempty"`
	Costs        []int    `json:"costs,omitempty"`
	Alignments   []string `json:"alignments,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
	Owned        bool     `json:"owned,omitempty"`
	NotOwned     bool     `json:"notOwned,omitempty"`
	FormatID     *int     `json:"formatId,omitempty"`
}

// Fingerprint returns a canonical encoding of the selection: two selections
// that filter identically share a fingerprint.
func (s Selection) Fingerprint() string {
	c := s
	c.Query = strings.ToLower(strings.TrimSpace(s.Query))
	if c.Query == "" || c.Mode == "" {
		c.Mode = ModeName
	}
	c.SetGroups = canonical(s.SetGroups)
	c.Energies = canonical(s.Energies)
	c.Universes = canonical(s.Universes)
	c.Rarities = canonical(s.Rarities)
	c.Types = canonical(s.Types)
	c.Genders = canonical(s.Genders)
	c.Alignments = canonical(s.Alignments)
	c.Affiliations = canonical(s.Affiliations)
	c.Costs = lo.Uniq(s.Costs)
	sort.Ints(c.Costs)
	if c.Owned == c.NotOwned {
		c.Owned, c.NotOwned = false, false
	}
	b, _ := json.Marshal(c)
	return string(b)
}

func canonical(values []string) []string {
	out := lo.Uniq(values)
	sort.Strings(out)
	return out
}

// Ownership answers whether a card is owned in any print.
type Ownership interface {
	Owns(cardPK int) bool
}

// Env carries the lookups a filter run needs besides the cards.
type Env struct {
	Vocabulary *vocabulary.Vocabulary
	Ownership  Ownership
	Texts      map[int]models.CardText
}

// compiled is a Selection turned into set lookups.
type compiled struct {
	term           string
	normalizedTerm string
	mode           Mode
	setGroups      map[string]struct{}
	energies       map[string]struct{}
	universes      map[string]struct{}
	rarities       map[string]struct{}
	types          map[string]struct{}
	genders        map[string]struct{}
	costs          map[int]struct{}
	alignments     map[string]struct{}
	affiliations   map[string]struct{}
	ownedOnly      bool
	notOwnedOnly   bool
	bans           *vocabulary.FormatBan
}

func compile(sel Selection, env Env) *compiled {
	c := &compiled{
		term:       strings.ToLower(strings.TrimSpace(sel.Query)),
		mode:       sel.Mode,
		setGroups:  toSet(sel.SetGroups),
		energies:   toSet(sel.Energies),
		universes:  toSet(sel.Universes),
		rarities:   toSet(sel.Rarities),
		types:      toSet(sel.Types),
		genders:    toSet(sel.Genders),
		costs:      toSet(sel.Costs),
		alignments: toSet(sel.Alignments),
	}
	if c.term != "" {
		c.normalizedTerm = tokens.NormalizeSearchValue(c.term)
	}
	if sel.Owned != sel.NotOwned {
		c.ownedOnly = sel.Owned
		c.notOwnedOnly = sel.NotOwned
	}
	if len(sel.Affiliations) > 0 {
		c.affiliations = affiliationResolver(env).ExpandAll(sel.Affiliations)
	}
	if sel.FormatID != nil && env.Vocabulary != nil {
		c.bans = env.Vocabulary.FormatBan(*sel.FormatID)
	}
	return c
}

func affiliationResolver(env Env) *affiliation.Resolver {
	if env.Vocabulary != nil && env.Vocabulary.Affiliations != nil {
		return env.Vocabulary.Affiliations
	}
	return affiliation.New(nil)
}

// Filter returns the cards matching every active axis of sel, in input
// order.
func Filter(cards []models.CardRecord, sel Selection, env Env) []models.CardRecord {
	c := compile(sel, env)
	resolver := affiliationResolver(env)
	out := make([]models.CardRecord, 0, len(cards))
	for i := range cards {
		if c.matches(&cards[i], env, resolver) {
			out = append(out, cards[i])
		}
	}
	return out
}

func (c *compiled) matches(card *models.CardRecord, env Env, resolver *affiliation.Resolver) bool {
	if c.term != "" && !c.matchesQuery(card, env.Texts) {
		return false
	}

	if len(c.setGroups) > 0 {
		label := card.SetGroup
		if label == "" {
			label = models.OtherSetGroup
		}
		if !has(c.setGroups, label) {
			return false
		}
	}

	if c.bans.Bans(card.SetID, card.CardPK) {
		return false
	}

	if len(c.energies) > 0 && !intersects(c.energies, tokens.ParseEnergyTokens(card.EnergyTokens)) {
		return false
	}

	if len(c.universes) > 0 && (card.Universe == "" || !has(c.universes, card.Universe)) {
		return false
	}

	if len(c.rarities) > 0 && (card.Rarity == "" || !has(c.rarities, card.Rarity)) {
		return false
	}

	if c.ownedOnly || c.notOwnedOnly {
		owned := env.Ownership != nil && env.Ownership.Owns(card.CardPK)
		if c.ownedOnly != owned {
			return false
		}
	}

	if len(c.affiliations) > 0 {
		cardTokens := tokens.SplitTokens(card.AffTokens)
		if len(cardTokens) == 0 {
			return false
		}
		for i, tok := range cardTokens {
			cardTokens[i] = affiliation.NormalizeToken(tok)
		}
		if !overlaps(c.affiliations, resolver.ExpandAll(cardTokens)) {
			return false
		}
	}

	if len(c.alignments) > 0 && !intersects(c.alignments, tokens.SplitTokens(card.AlignTokens)) {
		return false
	}

	if len(c.costs) > 0 && (card.Cost == nil || !has(c.costs, *card.Cost)) {
		return false
	}

	if len(c.types) > 0 && (card.TypeName == "" || !has(c.types, card.TypeName)) {
		return false
	}

	if len(c.genders) > 0 {
		label := tokens.GenderLabel(card.Gender)
		if label == "" || !has(c.genders, label) {
			return false
		}
	}

	return true
}

func (c *compiled) matchesQuery(card *models.CardRecord, texts map[int]models.CardText) bool {
	text, hasText := texts[card.CardPK]
	switch c.mode {
	case ModeGlobal:
		return hasText && c.matchesTerm(text.Global)
	case ModeText:
		return hasText && c.matchesTerm(text.Text)
	}

	candidates := make([]string, 0, 4)
	if v := strings.ToLower(strings.TrimSpace(card.CharacterName)); v != "" {
		candidates = append(candidates, v)
	}
	if hasText && text.Name != "" {
		candidates = append(candidates, text.Name)
	}
	if v := strings.ToLower(strings.TrimSpace(card.CardName)); v != "" {
		candidates = append(candidates, v)
	}
	if hasText && text.Subname != "" {
		candidates = append(candidates, text.Subname)
	}
	return lo.SomeBy(candidates, c.matchesTerm)
}

// matchesTerm reports whether the term is a substring of the lowercased
// value or of its normalized form.
func (c *compiled) matchesTerm(value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(strings.ToLower(value), c.term) {
		return true
	}
	if c.normalizedTerm == "" {
		return false
	}
	normalized := tokens.NormalizeSearchValue(value)
	return normalized != "" && strings.Contains(normalized, c.normalizedTerm)
}

func toSet[T comparable](values []T) map[T]struct{} {
	if len(values) == 0 {
		return nil
	}
	return lo.SliceToMap(values, func(v T) (T, struct{}) { return v, struct{}{} })
}

func has[T comparable](set map[T]struct{}, v T) bool {
	_, ok := set[v]
	return ok
}

func intersects(set map[string]struct{}, values []string) bool {
	return lo.SomeBy(values, func(v string) bool { return has(set, v) })
}

func overlaps(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k := range a {
		if has(b, k) {
			return true
		}
	}
	return false
}

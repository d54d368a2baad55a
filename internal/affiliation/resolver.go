// Package affiliation resolves composite affiliation tokens into the full set
// of leaf tokens they stand for.
package affiliation

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

const (
	// NoAffiliationToken is the synthetic token for cards without an affiliation.
	NoAffiliationToken = "none"
	// NoAffiliationLabel is the display label of NoAffiliationToken.
	NoAffiliationLabel = "No Affiliation"
	// NoAffiliationIcon is the icon file of NoAffiliationToken.
	NoAffiliationIcon = "a0.png"

	// legacyNoAffiliationToken is how reference data spells NoAffiliationToken.
	legacyNoAffiliationToken = "0"
)

// manualComposites are composites the reference data does not describe.
var manualComposites = map[string][]string{
	"46": {"4", "6"},
}

// hiddenTokens only appear as components of a composite.
var hiddenTokens = map[string]struct{}{
	"4": {},
	"6": {},
}

// NormalizeToken maps the reference spelling of "no affiliation" onto
// NoAffiliationToken and trims everything else.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if token == legacyNoAffiliationToken {
		return NoAffiliationToken
	}
	return token
}

// Resolver holds the closed expansion of every known token and the list of
// selectable affiliations. It is immutable once built and safe for
// concurrent use.
type Resolver struct {
	expansion map[string][]string
	display   []models.AffiliationDefinition
}

// BuildComponentMap parses the component lists of the given definitions and
// applies the manual composites. The result always contains
// NoAffiliationToken.
func BuildComponentMap(defs []models.AffiliationDefinition) map[string][]string {
	components := make(map[string][]string, len(defs)+len(manualComposites)+1)
	for _, def := range defs {
		components[NormalizeToken(def.Token)] = parseComponents(def.Components)
	}
	for _, token := range sortedKeys(manualComposites) {
		components[token] = append([]string(nil), manualComposites[token]...)
	}
	if _, ok := components[NoAffiliationToken]; !ok {
		components[NoAffiliationToken] = []string{}
	}
	return components
}

// New builds a Resolver from affiliation_icons rows. Every token of the
// component map is expanded up front.
func New(defs []models.AffiliationDefinition) *Resolver {
	components := BuildComponentMap(defs)
	r := &Resolver{
		expansion: make(map[string][]string, len(components)),
		display:   buildDisplay(defs),
	}

	memo := make(map[string]map[string]struct{}, len(components))
	for _, token := range sortedKeys(components) {
		set, _ := expand(token, components, memo, nil)
		memo[token] = set
	}
	for token, set := range memo {
		r.expansion[token] = setToSorted(set)
	}
	return r
}

// FromExpansion rebuilds a Resolver from a precomputed display list and
// expansion table, as stored in a vocabulary snapshot.
func FromExpansion(display []models.AffiliationDefinition, expansion map[string][]string) *Resolver {
	r := &Resolver{
		expansion: make(map[string][]string, len(expansion)),
		display:   append([]models.AffiliationDefinition(nil), display...),
	}
	for token, tokens := range expansion {
		sorted := append([]string(nil), tokens...)
		sort.Strings(sorted)
		r.expansion[token] = sorted
	}
	if _, ok := r.expansion[NoAffiliationToken]; !ok {
		r.expansion[NoAffiliationToken] = []string{NoAffiliationToken}
	}
	return r
}

// expand walks the component graph from token. trail holds the tokens being
// expanded on the current path and is never shared between siblings. The
// returned flag reports whether a cycle was cut below token, in which case
// the result is only complete for the outermost call and is not memoized.
func expand(token string, components map[string][]string, memo map[string]map[string]struct{}, trail map[string]struct{}) (map[string]struct{}, bool) {
	if set, ok := memo[token]; ok {
		return set, false
	}
	if _, ok := trail[token]; ok {
		return map[string]struct{}{token: {}}, true
	}

	nextTrail := make(map[string]struct{}, len(trail)+1)
	for t := range trail {
		nextTrail[t] = struct{}{}
	}
	nextTrail[token] = struct{}{}

	set := map[string]struct{}{token: {}}
	cut := false
	for _, comp := range components[token] {
		sub, subCut := expand(comp, components, memo, nextTrail)
		for t := range sub {
			set[t] = struct{}{}
		}
		cut = cut || subCut
	}
	if !cut {
		memo[token] = set
	}
	return set, cut
}

func buildDisplay(defs []models.AffiliationDefinition) []models.AffiliationDefinition {
	display := make([]models.AffiliationDefinition, 0, len(defs)+1)
	hasNone := false

	for _, def := range defs {
		_, hidden := hiddenTokens[def.Token]
		_, manual := manualComposites[def.Token]
		if !(!hidden && !def.IsComposite) && !manual {
			continue
		}
		entry := def
		entry.Token = NormalizeToken(def.Token)
		if entry.Token == NoAffiliationToken {
			label := NoAffiliationLabel
			entry.Alt = &label
			if entry.File == "" {
				entry.File = NoAffiliationIcon
			}
			hasNone = true
		}
		display = append(display, entry)
	}

	for _, token := range sortedKeys(manualComposites) {
		if lo.ContainsBy(display, func(d models.AffiliationDefinition) bool { return d.Token == token }) {
			continue
		}
		if base, ok := lo.Find(defs, func(d models.AffiliationDefinition) bool { return d.Token == token }); ok {
			display = append(display, base)
		}
	}

	if !hasNone {
		label := NoAffiliationLabel
		display = append([]models.AffiliationDefinition{{
			Token: NoAffiliationToken,
			File:  NoAffiliationIcon,
			Alt:   &label,
		}}, display...)
	}

	return lo.UniqBy(display, func(d models.AffiliationDefinition) string { return d.Token })
}

// Expand returns the sorted closure of token. Unknown tokens expand to
// themselves.
func (r *Resolver) Expand(token string) []string {
	if tokens, ok := r.expansion[token]; ok {
		return tokens
	}
	return []string{token}
}

// ExpandAll returns the union of the expansions of tokens.
func (r *Resolver) ExpandAll(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		for _, t := range r.Expand(token) {
			set[t] = struct{}{}
		}
	}
	return set
}

// Display returns the selectable affiliations, NoAffiliationToken included.
func (r *Resolver) Display() []models.AffiliationDefinition {
	return r.display
}

// Expansion returns the expansion table keyed by token.
func (r *Resolver) Expansion() map[string][]string {
	return r.expansion
}

func parseComponents(raw *string) []string {
	if raw == nil {
		return []string{}
	}
	parts := strings.Split(*raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setToSorted(set map[string]struct{}) []string {
	out := lo.Keys(set)
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// Package vocabulary derives the filterable values (set groups, energies,
// rarities, formats, affiliations and icon lookups) from reference rows.
package vocabulary

import (
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/ramonehamilton/prep-area/internal/affiliation"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

const (
	// missingRarityRank orders rarities without a rank last.
	missingRarityRank = 9999

	// retiredSetGroup is merged into other groups and never offered.
	retiredSetGroup = "sk2017"
)

// Set group label preference, lower wins.
const (
	prefFullName = 0
	prefOther    = 1
	prefOP       = 3
	prefNumbered = 4
)

var energyTokenIcons = map[string]string{
	"BOLT":    "e3.png",
	"FIST":    "e2.png",
	"MASK":    "e1.png",
	"SHIELD":  "e4.png",
	"GENERIC": "e0.png",
}

// SetGroup is a selectable set group with its display and hover labels.
type SetGroup struct {
	Group   string `json:"group"`
	Display string `json:"display"`
	Hover   string `json:"hover"`
}

// FormatBan lists the sets and cards a format bans.
type FormatBan struct {
	Sets  map[int]struct{}
	Cards map[int]struct{}
}

// Bans reports whether the format bans the given set or card.
func (b *FormatBan) Bans(setID, cardPK int) bool {
	if b == nil {
		return false
	}
	if _, ok := b.Sets[setID]; ok {
		return true
	}
	_, ok := b.Cards[cardPK]
	return ok
}

// Vocabulary is the full set of filter values derived from one reference
// catalog. It is immutable once built.
type Vocabulary struct {
	SetGroups    []SetGroup
	Universes    []string
	Energies     []string
	Rarities     []string
	Types        []string
	Genders      []string
	Formats      []models.Format
	FormatBans   map[int]*FormatBan
	Alignments   []models.Alignment
	Affiliations *affiliation.Resolver
	TokenIcons   []models.TokenIcon // sorted by token
	EnergyCodes  []models.EnergyCode

	setGroupLabels map[string]string
	tokenIcons     map[string]models.TokenIcon
	energyCodes    map[string]models.EnergyCode
}

// Empty returns a vocabulary with no values, used while nothing is loaded.
func Empty() *Vocabulary {
	v := &Vocabulary{
		SetGroups:    []SetGroup{},
		Universes:    []string{},
		Energies:     []string{},
		Rarities:     []string{},
		Types:        []string{},
		Genders:      []string{},
		Formats:      []models.Format{},
		FormatBans:   map[int]*FormatBan{},
		Alignments:   []models.Alignment{},
		Affiliations: affiliation.New(nil),
		TokenIcons:   []models.TokenIcon{},
		EnergyCodes:  []models.EnergyCode{},
	}
	v.index()
	return v
}

// Build derives a vocabulary from raw reference rows.
func Build(raw *models.ReferenceRows) *Vocabulary {
	if raw == nil {
		return Empty()
	}
	formats, bans := buildFormats(raw.Formats, raw.FormatBans)
	v := &Vocabulary{
		SetGroups:    buildSetGroups(raw.Sets, raw.CardSetIDs),
		Universes:    buildUniverses(raw.Sets),
		Energies:     buildEnergies(raw.Cards),
		Rarities:     buildRarities(raw.Cards),
		Types:        buildTypes(raw.Cards),
		Genders:      buildGenders(raw.Cards),
		Formats:      formats,
		FormatBans:   bans,
		Alignments:   buildAlignments(raw.Alignments),
		Affiliations: affiliation.New(raw.Affiliations),
		TokenIcons:   buildTokenIcons(raw.TokenIcons),
		EnergyCodes:  buildEnergyCodes(raw.EnergyCodes),
	}
	v.index()
	return v
}

func (v *Vocabulary) index() {
	v.setGroupLabels = make(map[string]string, len(v.SetGroups)+1)
	for _, g := range v.SetGroups {
		v.setGroupLabels[g.Group] = g.Display
	}
	if _, ok := v.setGroupLabels[models.OtherSetGroup]; !ok {
		v.setGroupLabels[models.OtherSetGroup] = models.OtherSetGroup
	}

	v.tokenIcons = make(map[string]models.TokenIcon, len(v.TokenIcons))
	for _, icon := range v.TokenIcons {
		v.tokenIcons[icon.Token] = icon
	}

	v.energyCodes = make(map[string]models.EnergyCode, len(v.EnergyCodes))
	for _, code := range v.EnergyCodes {
		v.energyCodes[code.Code] = code
	}
}

// SetGroupLabel returns the display label of a set group, or the group
// itself when it has none.
func (v *Vocabulary) SetGroupLabel(group string) string {
	if label, ok := v.setGroupLabels[group]; ok {
		return label
	}
	return group
}

// SetDisplay returns the set label shown for a card in trade and statistics
// views.
func (v *Vocabulary) SetDisplay(card *models.CardRecord) string {
	if g := strings.TrimSpace(card.SetGroup); g != "" {
		return v.SetGroupLabel(g)
	}
	if l := strings.TrimSpace(card.SetLabel); l != "" {
		return l
	}
	return "Unknown Set"
}

// FormatBan returns the bans of a format, or nil.
func (v *Vocabulary) FormatBan(formatID int) *FormatBan {
	return v.FormatBans[formatID]
}

// IconFileFor resolves a text token to its icon file, trying the token as
// given, upper and lower case, then a case-insensitive match on the icon's
// alt text.
func (v *Vocabulary) IconFileFor(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for _, key := range []string{token, strings.ToUpper(token), strings.ToLower(token)} {
		if icon, ok := v.tokenIcons[key]; ok {
			return icon.File, true
		}
	}
	for _, icon := range v.TokenIcons {
		if icon.Alt != nil && *icon.Alt != "" && strings.EqualFold(*icon.Alt, token) {
			return icon.File, true
		}
	}
	return "", false
}

// EnergyCode returns the icon row of an energy code.
func (v *Vocabulary) EnergyCode(code string) (models.EnergyCode, bool) {
	ec, ok := v.energyCodes[code]
	return ec, ok
}

// EnergyTokenIconFile returns the icon of an energy token such as "FIST".
func EnergyTokenIconFile(token string) (string, bool) {
	norm := tokens.NormalizeEnergyToken(token)
	if norm == "" {
		return "", false
	}
	file, ok := energyTokenIcons[norm]
	return file, ok
}

type setGroupCandidate struct {
	SetGroup
	pref int
}

func buildSetGroups(sets []models.SetRow, cardSetIDs []int) []SetGroup {
	withCards := lo.SliceToMap(cardSetIDs, func(id int) (int, struct{}) { return id, struct{}{} })

	best := make(map[string]setGroupCandidate)
	for _, s := range sets {
		if _, ok := withCards[s.SetID]; !ok {
			continue
		}
		c := newSetGroupCandidate(s)
		if cur, ok := best[c.Group]; !ok || c.less(cur) {
			best[c.Group] = c
		}
	}

	groups := make([]SetGroup, 0, len(best))
	for _, c := range best {
		if strings.ToLower(stripSpace(c.Group)) == retiredSetGroup {
			continue
		}
		groups = append(groups, c.SetGroup)
	}
	sort.Slice(groups, func(i, j int) bool {
		if c := tokens.CompareFold(groups[i].Display, groups[j].Display); c != 0 {
			return c < 0
		}
		return groups[i].Group < groups[j].Group
	})
	return groups
}

func newSetGroupCandidate(s models.SetRow) setGroupCandidate {
	group := s.SetGroup
	if group == "" {
		group = models.OtherSetGroup
	}
	display := s.SetAlt
	if display == "" {
		display = group
	}
	hover := s.FullName
	if hover == "" {
		hover = display
	}

	pref := prefOther
	switch {
	case s.FullName != "":
		pref = prefFullName
	case strings.HasSuffix(strings.ToLower(s.SetAlt), "op"):
		pref = prefOP
	case strings.ContainsFunc(s.SetAlt, unicode.IsDigit):
		pref = prefNumbered
	}

	return setGroupCandidate{
		SetGroup: SetGroup{Group: group, Display: display, Hover: hover},
		pref:     pref,
	}
}

func (c setGroupCandidate) less(o setGroupCandidate) bool {
	if c.pref != o.pref {
		return c.pref < o.pref
	}
	cSame, oSame := c.Display == c.Group, o.Display == o.Group
	if cSame != oSame {
		return !cSame
	}
	if cmp := tokens.CompareFold(c.Display, o.Display); cmp != 0 {
		return cmp < 0
	}
	return c.Hover < o.Hover
}

func buildUniverses(sets []models.SetRow) []string {
	universes := lo.Uniq(lo.FilterMap(sets, func(s models.SetRow, _ int) (string, bool) {
		return s.Universe, s.Universe != ""
	}))
	sort.Strings(universes)
	return universes
}

func buildEnergies(cards []models.CardRecord) []string {
	rankByToken := make(map[string]float64)
	for _, c := range cards {
		rowTokens := tokens.ParseEnergyTokens(c.EnergyTokens)
		if len(rowTokens) == 0 {
			continue
		}
		rank := tokens.EnergyCodeRank(c.EnergyCode)
		for _, tok := range rowTokens {
			if cur, ok := rankByToken[tok]; !ok || rank < cur {
				rankByToken[tok] = rank
			}
		}
	}

	energies := lo.Keys(rankByToken)
	sort.Slice(energies, func(i, j int) bool {
		ri, rj := rankByToken[energies[i]], rankByToken[energies[j]]
		if ri != rj {
			return ri < rj
		}
		return energies[i] < energies[j]
	})
	return energies
}

func buildRarities(cards []models.CardRecord) []string {
	rankByRarity := make(map[string]int)
	for _, c := range cards {
		if c.Rarity == "" {
			continue
		}
		rank := missingRarityRank
		if c.RarityRank != nil {
			rank = *c.RarityRank
		}
		if cur, ok := rankByRarity[c.Rarity]; !ok || rank < cur {
			rankByRarity[c.Rarity] = rank
		}
	}

	rarities := lo.Keys(rankByRarity)
	sort.Slice(rarities, func(i, j int) bool {
		ri, rj := rankByRarity[rarities[i]], rankByRarity[rarities[j]]
		if ri != rj {
			return ri < rj
		}
		return rarities[i] < rarities[j]
	})
	return rarities
}

func buildTypes(cards []models.CardRecord) []string {
	types := lo.Uniq(lo.FilterMap(cards, func(c models.CardRecord, _ int) (string, bool) {
		return c.TypeName, c.TypeName != ""
	}))
	sort.Strings(types)
	return types
}

func buildGenders(cards []models.CardRecord) []string {
	codes := lo.Uniq(lo.FilterMap(cards, func(c models.CardRecord, _ int) (string, bool) {
		return c.Gender, c.Gender != ""
	}))
	sort.Strings(codes)
	labels := lo.Map(codes, func(code string, _ int) string { return tokens.GenderLabel(code) })
	return lo.Uniq(lo.Compact(labels))
}

func buildFormats(formats []models.Format, banRows []models.FormatBanRow) ([]models.Format, map[int]*FormatBan) {
	bans := make(map[int]*FormatBan)
	ensure := func(id int) *FormatBan {
		b, ok := bans[id]
		if !ok {
			b = &FormatBan{Sets: map[int]struct{}{}, Cards: map[int]struct{}{}}
			bans[id] = b
		}
		return b
	}
	for _, row := range banRows {
		if row.SetID != nil {
			ensure(row.FormatID).Sets[*row.SetID] = struct{}{}
		}
		if row.CardPK != nil {
			ensure(row.FormatID).Cards[*row.CardPK] = struct{}{}
		}
	}

	list := lo.Filter(formats, func(f models.Format, _ int) bool {
		_, ok := bans[f.ID]
		return ok
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, bans
}

func buildAlignments(rows []models.Alignment) []models.Alignment {
	list := append([]models.Alignment{}, rows...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func buildTokenIcons(rows []models.TokenIcon) []models.TokenIcon {
	list := lo.Filter(rows, func(r models.TokenIcon, _ int) bool {
		return strings.TrimSpace(r.Token) != "" && strings.TrimSpace(r.File) != ""
	})
	list = lo.UniqBy(lo.Reverse(list), func(r models.TokenIcon) string { return r.Token })
	sort.Slice(list, func(i, j int) bool { return list[i].Token < list[j].Token })
	return list
}

func buildEnergyCodes(rows []models.EnergyCode) []models.EnergyCode {
	list := lo.Filter(rows, func(r models.EnergyCode, _ int) bool {
		return strings.TrimSpace(r.Code) != ""
	})
	list = lo.UniqBy(lo.Reverse(list), func(r models.EnergyCode) string { return r.Code })
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

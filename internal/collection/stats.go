package collection

import (
	"sort"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

const (
	uncategorizedUniverse = "Uncategorized"
	unknownSet            = "Unknown Set"
)

// SetLabeler maps a set group to its display label.
type SetLabeler interface {
	SetGroupLabel(group string) string
}

// Completion is an owned/total tally with foil counterparts.
type Completion struct {
	Name        string  `json:"name"`
	Total       int     `json:"total"`
	Owned       int     `json:"owned"`
	Percent     float64 `json:"percent"`
	FoilTotal   int     `json:"foilTotal"`
	FoilOwned   int     `json:"foilOwned"`
	FoilPercent float64 `json:"foilPercent"`
}

// UniverseStats is the completion of one universe and its sets.
type UniverseStats struct {
	Completion
	Sets []Completion `json:"sets"`
}

// Stats summarizes the collection against the card catalog.
type Stats struct {
	TotalStandard     int             `json:"totalStandard"`
	TotalFoil         int             `json:"totalFoil"`
	TotalDice         int             `json:"totalDice"`
	UniqueOwned       int             `json:"uniqueOwned"`
	UniqueTotal       int             `json:"uniqueTotal"`
	UniqueFoilOwned   int             `json:"uniqueFoilOwned"`
	FoilEligibleTotal int             `json:"foilEligibleTotal"`
	Universes         []UniverseStats `json:"universes"`
}

type universeTally struct {
	Completion
	sets map[string]*Completion
}

// ComputeStats tallies owned counts and completion per universe and set.
func ComputeStats(cards []models.CardRecord, snap *Snapshot, labels SetLabeler) *Stats {
	stats := &Stats{UniqueTotal: len(cards), Universes: []UniverseStats{}}
	for _, c := range snap.Cards {
		stats.TotalStandard += c.Standard
		stats.TotalFoil += c.Foil
	}
	for _, n := range snap.Dice {
		stats.TotalDice += n
	}

	universes := make(map[string]*universeTally)
	tally := func(card *models.CardRecord) {
		name := strings.TrimSpace(card.Universe)
		if name == "" {
			name = uncategorizedUniverse
		}
		u, ok := universes[name]
		if !ok {
			u = &universeTally{Completion: Completion{Name: name}, sets: make(map[string]*Completion)}
			universes[name] = u
		}
		u.Total++

		setKey, setName := setInfo(card, labels)
		set, ok := u.sets[setKey]
		if !ok {
			set = &Completion{Name: setName}
			u.sets[setKey] = set
		}
		set.Total++

		owned := snap.Card(card.CardPK)
		if card.HasFoil {
			u.FoilTotal++
			set.FoilTotal++
			stats.FoilEligibleTotal++
		}
		if owned.Owned() {
			u.Owned++
			set.Owned++
			stats.UniqueOwned++
			if card.HasFoil && owned.Foil > 0 {
				u.FoilOwned++
				set.FoilOwned++
				stats.UniqueFoilOwned++
			}
		}
	}

	seen := make(map[int]struct{}, len(cards))
	for i := range cards {
		if _, dup := seen[cards[i].CardPK]; dup {
			continue
		}
		seen[cards[i].CardPK] = struct{}{}
		tally(&cards[i])
	}

	for _, u := range universes {
		us := UniverseStats{Completion: u.Completion, Sets: make([]Completion, 0, len(u.sets))}
		us.fillPercent()
		for _, set := range u.sets {
			set.fillPercent()
			us.Sets = append(us.Sets, *set)
		}
		sortCompletions(us.Sets)
		stats.Universes = append(stats.Universes, us)
	}
	sort.Slice(stats.Universes, func(i, j int) bool {
		return tokens.CompareFold(stats.Universes[i].Name, stats.Universes[j].Name) < 0
	})
	return stats
}

func setInfo(card *models.CardRecord, labels SetLabeler) (key, name string) {
	if g := strings.TrimSpace(card.SetGroup); g != "" {
		name = g
		if labels != nil {
			name = labels.SetGroupLabel(g)
		}
		return g, name
	}
	if l := strings.TrimSpace(card.SetLabel); l != "" {
		return l, l
	}
	return unknownSet, unknownSet
}

func (c *Completion) fillPercent() {
	c.Percent = percent(c.Owned, c.Total)
	c.FoilPercent = percent(c.FoilOwned, c.FoilTotal)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func sortCompletions(list []Completion) {
	sort.Slice(list, func(i, j int) bool {
		if c := tokens.CompareFold(list[i].Name, list[j].Name); c != 0 {
			return c < 0
		}
		return list[i].Total < list[j].Total
	})
}

package vocabulary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/samber/lo"

	"github.com/ramonehamilton/prep-area/internal/affiliation"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// snapshotFile is the JSON shape of a pre-generated vocabulary.
type snapshotFile struct {
	SetGroups            []SetGroup                     `json:"setGroups"`
	Universes            []string                       `json:"universes"`
	Energies             []string                       `json:"energies"`
	Rarities             []string                       `json:"rarities"`
	Types                []string                       `json:"types"`
	Genders              []string                       `json:"genders"`
	Formats              []models.Format                `json:"formats"`
	FormatBans           []snapshotFormatBan            `json:"formatBans"`
	Alignments           []models.Alignment             `json:"alignments"`
	Affiliations         []models.AffiliationDefinition `json:"affiliations"`
	AffiliationExpansion []snapshotExpansion            `json:"affiliationExpansion"`
	TokenIcons           []models.TokenIcon             `json:"tokenIcons"`
	EnergyCodes          []models.EnergyCode            `json:"energyCodes"`
}

type snapshotFormatBan struct {
	ID    int   `json:"id"`
	Sets  []int `json:"sets"`
	Cards []int `json:"cards"`
}

type snapshotExpansion struct {
	Token  string   `json:"token"`
	Tokens []string `json:"tokens"`
}

// WriteSnapshot encodes v as an indented JSON snapshot.
func WriteSnapshot(w io.Writer, v *Vocabulary) error {
	file := snapshotFile{
		SetGroups:    v.SetGroups,
		Universes:    v.Universes,
		Energies:     v.Energies,
		Rarities:     v.Rarities,
		Types:        v.Types,
		Genders:      v.Genders,
		Formats:      v.Formats,
		Alignments:   v.Alignments,
		Affiliations: v.Affiliations.Display(),
		TokenIcons:   v.TokenIcons,
		EnergyCodes:  v.EnergyCodes,
	}

	ids := lo.Keys(v.FormatBans)
	sort.Ints(ids)
	file.FormatBans = make([]snapshotFormatBan, 0, len(ids))
	for _, id := range ids {
		ban := v.FormatBans[id]
		file.FormatBans = append(file.FormatBans, snapshotFormatBan{
			ID:    id,
			Sets:  sortedInts(ban.Sets),
			Cards: sortedInts(ban.Cards),
		})
	}

	expansion := v.Affiliations.Expansion()
	affTokens := lo.Keys(expansion)
	sort.Strings(affTokens)
	file.AffiliationExpansion = make([]snapshotExpansion, 0, len(affTokens))
	for _, token := range affTokens {
		file.AffiliationExpansion = append(file.AffiliationExpansion, snapshotExpansion{
			Token:  token,
			Tokens: expansion[token],
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to encode vocabulary snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Vocabulary, error) {
	var file snapshotFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary snapshot: %w", err)
	}

	v := &Vocabulary{
		SetGroups:   orEmpty(file.SetGroups),
		Universes:   orEmpty(file.Universes),
		Energies:    orEmpty(file.Energies),
		Rarities:    orEmpty(file.Rarities),
		Types:       orEmpty(file.Types),
		Genders:     orEmpty(file.Genders),
		Formats:     orEmpty(file.Formats),
		FormatBans:  make(map[int]*FormatBan, len(file.FormatBans)),
		Alignments:  orEmpty(file.Alignments),
		TokenIcons:  orEmpty(file.TokenIcons),
		EnergyCodes: orEmpty(file.EnergyCodes),
	}
	for _, ban := range file.FormatBans {
		v.FormatBans[ban.ID] = &FormatBan{
			Sets:  lo.SliceToMap(ban.Sets, func(id int) (int, struct{}) { return id, struct{}{} }),
			Cards: lo.SliceToMap(ban.Cards, func(pk int) (int, struct{}) { return pk, struct{}{} }),
		}
	}

	expansion := make(map[string][]string, len(file.AffiliationExpansion))
	for _, e := range file.AffiliationExpansion {
		expansion[e.Token] = e.Tokens
	}
	v.Affiliations = affiliation.FromExpansion(file.Affiliations, expansion)

	v.index()
	return v, nil
}

// LoadSnapshotFile reads a snapshot from disk.
func LoadSnapshotFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSnapshot(f)
}

// SaveSnapshotFile writes a snapshot to disk, replacing any existing file.
func SaveSnapshotFile(path string, v *Vocabulary) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create vocabulary snapshot: %w", err)
	}
	if err := WriteSnapshot(f, v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close vocabulary snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace vocabulary snapshot: %w", err)
	}
	return nil
}

func sortedInts(set map[int]struct{}) []int {
	out := lo.Keys(set)
	sort.Ints(out)
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

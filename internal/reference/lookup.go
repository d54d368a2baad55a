package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TZName is the external trading-site naming of a card.
type TZName struct {
	Set       string `json:"set"`
	Character string `json:"character"`
	CardName  string `json:"cardName"`
}

// Lookuper resolves external names to card pks.
type Lookuper interface {
	Lookup(ctx context.Context, set, character, cardName string) (int, bool, error)
}

// Lookup resolves an external set, character and card name to a card pk
// through tz_card_map. The match is exact.
func (s *Store) Lookup(ctx context.Context, set, character, cardName string) (int, bool, error) {
	if !s.HasTable(TableTZCardMap) {
		return 0, false, ErrNoLookupTable
	}
	var pk int
	err := s.db.QueryRowContext(ctx,
		`SELECT card_pk FROM tz_card_map WHERE tz_set = ? AND tz_character = ? AND tz_card_name = ? LIMIT 1`,
		set, character, cardName).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up card: %w", err)
	}
	return pk, true, nil
}

// NameIndex is tz_card_map held in memory: the first external name of each
// card and the first card of each external name.
type NameIndex struct {
	byPK   map[int]TZName
	byName map[TZName]int
}

// LoadNameIndex reads tz_card_map. It returns nil and ErrNoLookupTable
// when the table is absent.
func (s *Store) LoadNameIndex(ctx context.Context) (*NameIndex, error) {
	if !s.HasTable(TableTZCardMap) {
		return nil, ErrNoLookupTable
	}
	rows, err := s.query(ctx, TableTZCardMap, `
		SELECT card_pk, tz_set, tz_character, tz_card_name
		FROM tz_card_map
		ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}

	idx := &NameIndex{byPK: make(map[int]TZName), byName: make(map[TZName]int)}
	err = scanAll(rows, func(r *sql.Rows) error {
		var (
			pk                       sql.NullInt64
			set, character, cardName sql.NullString
		)
		if err := r.Scan(&pk, &set, &character, &cardName); err != nil {
			return fmt.Errorf("failed to scan tz name: %w", err)
		}
		if !pk.Valid {
			return nil
		}
		name := TZName{Set: set.String, Character: character.String, CardName: cardName.String}
		if _, seen := idx.byPK[int(pk.Int64)]; !seen {
			idx.byPK[int(pk.Int64)] = name
		}
		if _, seen := idx.byName[name]; !seen {
			idx.byName[name] = int(pk.Int64)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup implements Lookuper.
func (n *NameIndex) Lookup(_ context.Context, set, character, cardName string) (int, bool, error) {
	pk, ok := n.byName[TZName{Set: set, Character: character, CardName: cardName}]
	return pk, ok, nil
}

// Name returns the external name of a card.
func (n *NameIndex) Name(cardPK int) (TZName, bool) {
	if n == nil {
		return TZName{}, false
	}
	name, ok := n.byPK[cardPK]
	return name, ok
}

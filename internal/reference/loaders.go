package reference

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// LoadCards returns every card_rows row ordered by character, rarity rank
// and card number.
func (s *Store) LoadCards(ctx context.Context) ([]models.CardRecord, error) {
	rows, err := s.query(ctx, TableCardRows, `
		SELECT card_pk, set_id, set_label, set_group, universe,
		       card_number, character_name, card_name, cost,
		       energy_code, energy_tokens, type_name, rarity,
		       rarity_rank, gender, aff_tokens, align_tokens, has_errata, has_foil
		FROM card_rows
		ORDER BY character_name COLLATE NOCASE, rarity_rank, card_number
	`)
	if err != nil {
		return nil, err
	}

	cards := []models.CardRecord{}
	err = scanAll(rows, func(r *sql.Rows) error {
		var (
			c                                           models.CardRecord
			setID, cost, rarityRank, hasErrata, hasFoil sql.NullInt64
			setLabel, setGroup, universe, cardNumber    sql.NullString
			character, cardName, energyCode             sql.NullString
			energyTokens, typeName, rarity, gender      sql.NullString
			affTokens, alignTokens                      sql.NullString
		)
		if err := r.Scan(&c.CardPK, &setID, &setLabel, &setGroup, &universe,
			&cardNumber, &character, &cardName, &cost,
			&energyCode, &energyTokens, &typeName, &rarity,
			&rarityRank, &gender, &affTokens, &alignTokens, &hasErrata, &hasFoil); err != nil {
			return fmt.Errorf("failed to scan card row: %w", err)
		}
		c.SetID = int(setID.Int64)
		c.SetLabel = setLabel.String
		c.SetGroup = setGroup.String
		c.Universe = universe.String
		c.CardNumber = cardNumber.String
		c.CharacterName = character.String
		c.CardName = cardName.String
		c.Cost = optInt(cost)
		c.EnergyCode = energyCode.String
		c.EnergyTokens = energyTokens.String
		c.TypeName = typeName.String
		c.Rarity = rarity.String
		c.RarityRank = optInt(rarityRank)
		c.Gender = gender.String
		c.AffTokens = affTokens.String
		c.AlignTokens = alignTokens.String
		c.HasErrata = hasErrata.Int64 != 0
		c.HasFoil = hasFoil.Int64 != 0
		cards = append(cards, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// LoadCardTexts returns the searchable text and dice details of every card,
// keyed by card pk. Text is lowercased; names are also trimmed.
func (s *Store) LoadCardTexts(ctx context.Context) (map[int]models.CardText, error) {
	diceFaces := "NULL"
	if s.HasColumn(ctx, TableCards, "dice_faces") {
		diceFaces = "dice_faces"
	}
	rows, err := s.query(ctx, TableCards, `
		SELECT card_pk, text_src, global_text_src, name, subname, maxdice, `+diceFaces+`
		FROM cards
	`)
	if err != nil {
		return nil, err
	}

	texts := make(map[int]models.CardText)
	err = scanAll(rows, func(r *sql.Rows) error {
		var (
			pk                                 int
			text, global, name, subname, faces sql.NullString
			maxDice                            sql.NullFloat64
		)
		if err := r.Scan(&pk, &text, &global, &name, &subname, &maxDice, &faces); err != nil {
			return fmt.Errorf("failed to scan card text: %w", err)
		}
		t := models.CardText{
			CardPK:    pk,
			Text:      strings.ToLower(text.String),
			Global:    strings.ToLower(global.String),
			Name:      strings.TrimSpace(strings.ToLower(name.String)),
			Subname:   strings.TrimSpace(strings.ToLower(subname.String)),
			MaxDice:   models.DefaultMaxDice,
			DiceFaces: faces.String,
		}
		if maxDice.Valid && maxDice.Float64 > 0 {
			t.MaxDice = int(maxDice.Float64)
		}
		texts[pk] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return texts, nil
}

// LoadRows returns every raw row the filter vocabulary is built from.
func (s *Store) LoadRows(ctx context.Context) (*models.ReferenceRows, error) {
	cards, err := s.LoadCards(ctx)
	if err != nil {
		return nil, err
	}
	raw := &models.ReferenceRows{Cards: cards}

	loaders := []func(context.Context, *models.ReferenceRows) error{
		s.loadCardSetIDs,
		s.loadSets,
		s.loadFormats,
		s.loadFormatBans,
		s.loadAffiliations,
		s.loadAlignments,
		s.loadTokenIcons,
		s.loadEnergyCodes,
	}
	for _, load := range loaders {
		if err := load(ctx, raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (s *Store) loadCardSetIDs(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableCards, `SELECT DISTINCT set_id FROM cards WHERE set_id IS NOT NULL`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var id int
		if err := r.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan set id: %w", err)
		}
		raw.CardSetIDs = append(raw.CardSetIDs, id)
		return nil
	})
}

func (s *Store) loadSets(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableSets, `SELECT set_id, set_group, set_alt, full_name, universe FROM sets`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var (
			set                            models.SetRow
			group, alt, fullName, universe sql.NullString
		)
		if err := r.Scan(&set.SetID, &group, &alt, &fullName, &universe); err != nil {
			return fmt.Errorf("failed to scan set: %w", err)
		}
		set.SetGroup = group.String
		set.SetAlt = alt.String
		set.FullName = fullName.String
		set.Universe = universe.String
		raw.Sets = append(raw.Sets, set)
		return nil
	})
}

func (s *Store) loadFormats(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableFormats, `SELECT format_id, code, name, notes FROM formats ORDER BY name`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var (
			f           models.Format
			code, notes sql.NullString
			name        sql.NullString
		)
		if err := r.Scan(&f.ID, &code, &name, &notes); err != nil {
			return fmt.Errorf("failed to scan format: %w", err)
		}
		if code.Valid && code.String != "" {
			f.Code = optString(code)
		}
		f.Name = name.String
		f.Notes = optString(notes)
		raw.Formats = append(raw.Formats, f)
		return nil
	})
}

func (s *Store) loadFormatBans(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableFormatBannedSets, `SELECT format_id, set_id FROM format_banned_sets`)
	if err != nil {
		return err
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var formatID, setID sql.NullInt64
		if err := r.Scan(&formatID, &setID); err != nil {
			return fmt.Errorf("failed to scan banned set: %w", err)
		}
		if formatID.Valid && setID.Valid {
			raw.FormatBans = append(raw.FormatBans, models.FormatBanRow{FormatID: int(formatID.Int64), SetID: optInt(setID)})
		}
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.query(ctx, TableFormatBannedCards, `SELECT format_id, card_pk FROM format_banned_cards`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var formatID, cardPK sql.NullInt64
		if err := r.Scan(&formatID, &cardPK); err != nil {
			return fmt.Errorf("failed to scan banned card: %w", err)
		}
		if formatID.Valid && cardPK.Valid {
			raw.FormatBans = append(raw.FormatBans, models.FormatBanRow{FormatID: int(formatID.Int64), CardPK: optInt(cardPK)})
		}
		return nil
	})
}

func (s *Store) loadAffiliations(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableAffiliationIcons, `
		SELECT token, file, alt, COALESCE(is_composite, 0), components
		FROM affiliation_icons
		ORDER BY token
	`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var (
			def                          models.AffiliationDefinition
			token, file, alt, components sql.NullString
			composite                    sql.NullInt64
		)
		if err := r.Scan(&token, &file, &alt, &composite, &components); err != nil {
			return fmt.Errorf("failed to scan affiliation: %w", err)
		}
		def.Token = token.String
		def.File = file.String
		def.Alt = optString(alt)
		def.IsComposite = composite.Int64 != 0
		def.Components = optString(components)
		raw.Affiliations = append(raw.Affiliations, def)
		return nil
	})
}

func (s *Store) loadAlignments(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableAlignments, `SELECT token, name FROM alignments ORDER BY name`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var token, name sql.NullString
		if err := r.Scan(&token, &name); err != nil {
			return fmt.Errorf("failed to scan alignment: %w", err)
		}
		raw.Alignments = append(raw.Alignments, models.Alignment{Token: token.String, Name: name.String})
		return nil
	})
}

func (s *Store) loadTokenIcons(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableTokenIcons, `SELECT token, file, alt FROM token_icons`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var token, file, alt sql.NullString
		if err := r.Scan(&token, &file, &alt); err != nil {
			return fmt.Errorf("failed to scan token icon: %w", err)
		}
		raw.TokenIcons = append(raw.TokenIcons, models.TokenIcon{Token: token.String, File: file.String, Alt: optString(alt)})
		return nil
	})
}

func (s *Store) loadEnergyCodes(ctx context.Context, raw *models.ReferenceRows) error {
	rows, err := s.query(ctx, TableEnergyCodes, `SELECT code, file, alt FROM energy_codes`)
	if err != nil {
		return err
	}
	return scanAll(rows, func(r *sql.Rows) error {
		var code, file, alt sql.NullString
		if err := r.Scan(&code, &file, &alt); err != nil {
			return fmt.Errorf("failed to scan energy code: %w", err)
		}
		raw.EnergyCodes = append(raw.EnergyCodes, models.EnergyCode{Code: code.String, File: optString(file), Alt: optString(alt)})
		return nil
	})
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// CollectionRepository reads and writes owned card and dice counts.
type CollectionRepository interface {
	// ListCollection returns every collection row. Counts are nil for NULL columns.
	ListCollection(ctx context.Context) ([]models.CollectionRow, error)

	// ListDice returns every collection_dice row.
	ListDice(ctx context.Context) ([]models.DiceRow, error)

	// UpsertCards writes standard and foil counts in one transaction.
	UpsertCards(ctx context.Context, entries []models.CollectionEntry) error

	// UpsertDice writes dice counts in one transaction.
	UpsertDice(ctx context.Context, entries []models.DiceCount) error
}

// collectionRepository is the concrete implementation of CollectionRepository.
type collectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new collection repository.
func NewCollectionRepository(db *sql.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

// ListCollection returns every collection row.
func (r *collectionRepository) ListCollection(ctx context.Context) ([]models.CollectionRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT card_pk, have_cards, have_foil FROM collection ORDER BY card_pk`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CollectionRow
	for rows.Next() {
		var (
			row   models.CollectionRow
			cards sql.NullFloat64
			foil  sql.NullFloat64
		)
		if err := rows.Scan(&row.CardPK, &cards, &foil); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		row.HaveCards = nullFloat(cards)
		row.HaveFoil = nullFloat(foil)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection: %w", err)
	}
	return out, nil
}

// ListDice returns every collection_dice row.
func (r *collectionRepository) ListDice(ctx context.Context) ([]models.DiceRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT character_name, set_group, dice_count FROM collection_dice ORDER BY character_name, set_group`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dice: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DiceRow
	for rows.Next() {
		var (
			row   models.DiceRow
			group sql.NullString
			count sql.NullFloat64
		)
		if err := rows.Scan(&row.Character, &group, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dice row: %w", err)
		}
		row.SetGroup = group.String
		row.Count = nullFloat(count)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dice: %w", err)
	}
	return out, nil
}

// UpsertCards writes standard and foil counts in one transaction.
func (r *collectionRepository) UpsertCards(ctx context.Context, entries []models.CollectionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO collection (card_pk, have_cards, have_foil)
			VALUES (?, ?, ?)
			ON CONFLICT(card_pk) DO UPDATE SET
				have_cards = excluded.have_cards,
				have_foil = excluded.have_foil
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare card upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range entries {
			if e.CardPK <= 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, e.CardPK, max(0, e.Standard), max(0, e.Foil)); err != nil {
				return fmt.Errorf("failed to upsert card %d: %w", e.CardPK, err)
			}
		}
		return nil
	})
}

// UpsertDice writes dice counts in one transaction.
func (r *collectionRepository) UpsertDice(ctx context.Context, entries []models.DiceCount) error {
	if len(entries) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO collection_dice (character_name, set_group, dice_count)
			VALUES (?, ?, ?)
			ON CONFLICT(character_name, set_group) DO UPDATE SET dice_count = excluded.dice_count
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare dice upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range entries {
			if e.Character == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, e.Character, e.SetGroup, max(0, e.Count)); err != nil {
				return fmt.Errorf("failed to upsert dice %s/%s: %w", e.Character, e.SetGroup, err)
			}
		}
		return nil
	})
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// inTx runs fn in a transaction on db.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

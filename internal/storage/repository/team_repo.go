package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// ErrTeamNotFound is returned when a team id does not exist.
var ErrTeamNotFound = errors.New("team not found")

// sqliteTimestamp is the layout of CURRENT_TIMESTAMP.
const sqliteTimestamp = "2006-01-02 15:04:05"

// TeamRepository handles database operations for teams and their cards.
type TeamRepository interface {
	// List returns every team ordered by creation time, then id.
	List(ctx context.Context) ([]*models.Team, error)

	// Get returns one team.
	Get(ctx context.Context, teamID int) (*models.Team, error)

	// Create inserts a team and returns it.
	Create(ctx context.Context, name string) (*models.Team, error)

	// Rename sets a team's name.
	Rename(ctx context.Context, teamID int, name string) error

	// Delete removes a team's cards, then the team.
	Delete(ctx context.Context, teamID int) error

	// ListCards returns the cards of one team.
	ListCards(ctx context.Context, teamID int) ([]models.TeamCard, error)

	// ListAllCards returns the cards of every team.
	ListAllCards(ctx context.Context) ([]models.TeamCard, error)

	// AddCard adds a card with no dice; adding a card twice is a no-op.
	AddCard(ctx context.Context, teamID, cardPK int) error

	// RemoveCard removes a card from a team.
	RemoveCard(ctx context.Context, teamID, cardPK int) error

	// SetCardDice stores the dice committed to a card on a team.
	SetCardDice(ctx context.Context, teamID, cardPK, dice int) error
}

// teamRepository is the concrete implementation of TeamRepository.
type teamRepository struct {
	db *sql.DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *sql.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) List(ctx context.Context) ([]*models.Team, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT team_id, name, created_at, updated_at
		FROM teams
		ORDER BY COALESCE(created_at, ''), team_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer func() { _ = rows.Close() }()

	teams := []*models.Team{}
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepository) Get(ctx context.Context, teamID int) (*models.Team, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT team_id, name, created_at, updated_at FROM teams WHERE team_id = ?`, teamID)
	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	return team, err
}

func (r *teamRepository) Create(ctx context.Context, name string) (*models.Team, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (name, created_at, updated_at) VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get team id: %w", err)
	}
	return r.Get(ctx, int(id))
}

func (r *teamRepository) Rename(ctx context.Context, teamID int, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE team_id = ?`, name, teamID)
	if err != nil {
		return fmt.Errorf("failed to rename team: %w", err)
	}
	return requireAffected(result)
}

func (r *teamRepository) Delete(ctx context.Context, teamID int) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_cards WHERE team_id = ?`, teamID); err != nil {
			return fmt.Errorf("failed to delete team cards: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE team_id = ?`, teamID)
		if err != nil {
			return fmt.Errorf("failed to delete team: %w", err)
		}
		return requireAffected(result)
	})
}

func (r *teamRepository) ListCards(ctx context.Context, teamID int) ([]models.TeamCard, error) {
	return r.queryCards(ctx,
		`SELECT team_id, card_pk, dice_count FROM team_cards WHERE team_id = ? ORDER BY card_pk`, teamID)
}

func (r *teamRepository) ListAllCards(ctx context.Context) ([]models.TeamCard, error) {
	return r.queryCards(ctx, `SELECT team_id, card_pk, dice_count FROM team_cards ORDER BY team_id, card_pk`)
}

func (r *teamRepository) queryCards(ctx context.Context, query string, args ...any) ([]models.TeamCard, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cards := []models.TeamCard{}
	for rows.Next() {
		var (
			card models.TeamCard
			dice sql.NullInt64
		)
		if err := rows.Scan(&card.TeamID, &card.CardPK, &dice); err != nil {
			return nil, fmt.Errorf("failed to scan team card: %w", err)
		}
		if card.TeamID <= 0 || card.CardPK <= 0 {
			continue
		}
		card.DiceCount = max(0, int(dice.Int64))
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team cards: %w", err)
	}
	return cards, nil
}

func (r *teamRepository) AddCard(ctx context.Context, teamID, cardPK int) error {
	return r.touching(ctx, teamID,
		`INSERT OR IGNORE INTO team_cards (team_id, card_pk, dice_count) VALUES (?, ?, 0)`, teamID, cardPK)
}

func (r *teamRepository) RemoveCard(ctx context.Context, teamID, cardPK int) error {
	return r.touching(ctx, teamID,
		`DELETE FROM team_cards WHERE team_id = ? AND card_pk = ?`, teamID, cardPK)
}

func (r *teamRepository) SetCardDice(ctx context.Context, teamID, cardPK, dice int) error {
	return r.touching(ctx, teamID, `
		INSERT INTO team_cards (team_id, card_pk, dice_count)
		VALUES (?, ?, ?)
		ON CONFLICT(team_id, card_pk) DO UPDATE SET dice_count = excluded.dice_count
	`, teamID, cardPK, max(0, dice))
}

// touching runs a team_cards statement and bumps the team's updated_at.
func (r *teamRepository) touching(ctx context.Context, teamID int, query string, args ...any) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE teams SET updated_at = CURRENT_TIMESTAMP WHERE team_id = ?`, teamID)
		if err != nil {
			return fmt.Errorf("failed to touch team: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update team cards: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		team             models.Team
		name             sql.NullString
		created, updated sql.NullString
	)
	if err := row.Scan(&team.ID, &name, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	team.Name = name.String
	team.CreatedAt = parseTimestamp(created.String)
	team.UpdatedAt = parseTimestamp(updated.String)
	return &team, nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(sqliteTimestamp, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrTeamNotFound
	}
	return nil
}

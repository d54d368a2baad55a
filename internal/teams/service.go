// Package teams manages named teams of cards and the dice committed to each
// card, within the per-team dice cap.
package teams

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/storage/repository"
	"github.com/ramonehamilton/prep-area/internal/tokens"
)

// MaxTeamDice is the most dice a team may field across all its cards.
const MaxTeamDice = models.DefaultMaxDice

// UntitledTeam is the name shown for teams with a blank name.
const UntitledTeam = "Untitled Team"

// Change actions reported to Config.OnChange.
const (
	ActionCreated = "created"
	ActionRenamed = "renamed"
	ActionDeleted = "deleted"
	ActionCards   = "cards"
	ActionDice    = "dice"
)

// Catalog resolves cards and their dice ratings.
type Catalog interface {
	Card(cardPK int) (*models.CardRecord, bool)
	MaxDice(cardPK int) int
}

// DiceOwnership reports the dice owned for a card's bucket.
type DiceOwnership interface {
	DiceForCard(card *models.CardRecord) int
}

// Config configures a Service.
type Config struct {
	Repository repository.TeamRepository
	Logger     *slog.Logger
	OnChange   func(teamID int, action string) // called after every successful change
}

// Service implements team operations on top of the team repository.
// Mutations are serialized so the dice cap holds across concurrent callers.
type Service struct {
	mu       sync.Mutex
	repo     repository.TeamRepository
	logger   *slog.Logger
	onChange func(int, string)
}

// NewService creates a team service.
func NewService(config Config) (*Service, error) {
	if config.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{
		repo:     config.Repository,
		logger:   config.Logger,
		onChange: config.OnChange,
	}, nil
}

// ClampDice returns the dice a card may carry on a team: the request, capped
// by the card's rating, the dice owned for its bucket and the room left
// under the team cap once the card's current dice are set aside.
func ClampDice(requested, maxDice, ownedDice, teamTotal, current int) int {
	perCard := min(max(0, maxDice), max(0, ownedDice))
	remaining := MaxTeamDice - (teamTotal - current)
	return max(0, min(max(0, requested), perCard, remaining))
}

// List returns every team in creation order.
func (s *Service) List(ctx context.Context) ([]*models.Team, error) {
	teams, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		t.Name = displayName(t.Name)
	}
	return teams, nil
}

// Create adds a team. A blank name becomes "Team N" where N is one more
// than the number of teams.
func (s *Service) Create(ctx context.Context, name string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		existing, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("Team %d", len(existing)+1)
	}
	team, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Team created", "teamID", team.ID, "name", team.Name)
	s.changed(team.ID, ActionCreated)
	return team, nil
}

// Rename renames a team. A blank name becomes "Untitled Team".
func (s *Service) Rename(ctx context.Context, teamID int, name string) error {
	if err := s.repo.Rename(ctx, teamID, displayName(strings.TrimSpace(name))); err != nil {
		return err
	}
	s.changed(teamID, ActionRenamed)
	return nil
}

// Delete removes a team and its cards.
func (s *Service) Delete(ctx context.Context, teamID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, teamID); err != nil {
		return err
	}
	s.logger.Info("Team deleted", "teamID", teamID)
	s.changed(teamID, ActionDeleted)
	return nil
}

// AddCard adds a card with no dice. Adding a card already on the team
// changes nothing but the team's update time.
func (s *Service) AddCard(ctx context.Context, teamID, cardPK int) error {
	if cardPK <= 0 {
		return fmt.Errorf("invalid card pk %d", cardPK)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.AddCard(ctx, teamID, cardPK); err != nil {
		return err
	}
	s.changed(teamID, ActionCards)
	return nil
}

// RemoveCard removes a card from a team.
func (s *Service) RemoveCard(ctx context.Context, teamID, cardPK int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.RemoveCard(ctx, teamID, cardPK); err != nil {
		return err
	}
	s.changed(teamID, ActionCards)
	return nil
}

// SetCardDice sets the dice committed to a card, clamped with ClampDice,
// and returns the stored value. The team's cards are read and written under
// the service lock.
func (s *Service) SetCardDice(ctx context.Context, teamID, cardPK, requested int, catalog Catalog, owned DiceOwnership) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.repo.ListCards(ctx, teamID)
	if err != nil {
		return 0, err
	}
	current, total := 0, 0
	for _, c := range cards {
		total += c.DiceCount
		if c.CardPK == cardPK {
			current = c.DiceCount
		}
	}

	maxDice := models.DefaultMaxDice
	ownedDice := 0
	if catalog != nil {
		maxDice = catalog.MaxDice(cardPK)
		if card, ok := catalog.Card(cardPK); ok && owned != nil {
			ownedDice = owned.DiceForCard(card)
		}
	}

	next := ClampDice(requested, maxDice, ownedDice, total, current)
	if next == current {
		return current, nil
	}
	if err := s.repo.SetCardDice(ctx, teamID, cardPK, next); err != nil {
		return 0, err
	}
	s.changed(teamID, ActionDice)
	return next, nil
}

// CardDetail is one card of a team with its dice limits.
type CardDetail struct {
	Card      *models.CardRecord `json:"card"`
	CardPK    int                `json:"cardPk"`
	DiceCount int                `json:"diceCount"`
	MaxDice   int                `json:"maxDice"`
	OwnedDice int                `json:"ownedDice"`
	Limit     int                `json:"limit"`
}

// Detail is a team with its cards.
type Detail struct {
	Team          *models.Team `json:"team"`
	Cards         []CardDetail `json:"cards"`
	TotalDice     int          `json:"totalDice"`
	RemainingDice int          `json:"remainingDice"`
}

// Detail returns a team's cards ordered by character and card name. Cards
// no longer in the catalog are listed without a record.
func (s *Service) Detail(ctx context.Context, teamID int, catalog Catalog, owned DiceOwnership) (*Detail, error) {
	team, err := s.repo.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	team.Name = displayName(team.Name)
	cards, err := s.repo.ListCards(ctx, teamID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Team: team, Cards: make([]CardDetail, 0, len(cards))}
	for _, c := range cards {
		d.TotalDice += c.DiceCount
	}
	for _, c := range cards {
		cd := CardDetail{CardPK: c.CardPK, DiceCount: c.DiceCount, MaxDice: models.DefaultMaxDice}
		if catalog != nil {
			cd.MaxDice = catalog.MaxDice(c.CardPK)
			if card, ok := catalog.Card(c.CardPK); ok {
				cd.Card = card
				if owned != nil {
					cd.OwnedDice = owned.DiceForCard(card)
				}
			}
		}
		cd.Limit = ClampDice(MaxTeamDice, cd.MaxDice, cd.OwnedDice, d.TotalDice, c.DiceCount)
		d.Cards = append(d.Cards, cd)
	}
	d.RemainingDice = max(0, MaxTeamDice-d.TotalDice)

	sortCards(d.Cards)
	return d, nil
}

func sortCards(cards []CardDetail) {
	name := func(c CardDetail) (string, string) {
		if c.Card == nil {
			return "", ""
		}
		return c.Card.CharacterName, c.Card.CardName
	}
	slices.SortFunc(cards, func(a, b CardDetail) int {
		ac, an := name(a)
		bc, bn := name(b)
		if c := tokens.CompareFold(ac, bc); c != 0 {
			return c
		}
		if c := tokens.CompareFold(an, bn); c != 0 {
			return c
		}
		return a.CardPK - b.CardPK
	})
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return UntitledTeam
	}
	return name
}

func (s *Service) changed(teamID int, action string) {
	if s.onChange != nil {
		s.onChange(teamID, action)
	}
}

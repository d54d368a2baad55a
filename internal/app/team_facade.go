package app

import (
	"context"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/teams"
)

// TeamFacade handles team operations.
type TeamFacade struct {
	services *Services
}

// NewTeamFacade creates a new TeamFacade with the given services.
func NewTeamFacade(services *Services) *TeamFacade {
	return &TeamFacade{services: services}
}

// catalog returns the loaded catalog as a teams.Catalog, or nil.
func (f *TeamFacade) catalog() teams.Catalog {
	c, err := f.services.Reference.Current()
	if err != nil {
		return nil
	}
	return c
}

// List returns every team.
func (f *TeamFacade) List(ctx context.Context) ([]*models.Team, error) {
	return f.services.Teams.List(ctx)
}

// Create adds a team.
func (f *TeamFacade) Create(ctx context.Context, name string) (*models.Team, error) {
	return f.services.Teams.Create(ctx, name)
}

// Rename renames a team.
func (f *TeamFacade) Rename(ctx context.Context, teamID int, name string) error {
	return f.services.Teams.Rename(ctx, teamID, name)
}

// Delete removes a team.
func (f *TeamFacade) Delete(ctx context.Context, teamID int) error {
	return f.services.Teams.Delete(ctx, teamID)
}

// Detail returns a team with its cards and dice limits.
func (f *TeamFacade) Detail(ctx context.Context, teamID int) (*teams.Detail, error) {
	return f.services.Teams.Detail(ctx, teamID, f.catalog(), f.services.Ownership.Snapshot())
}

// AddCard adds a card to a team.
func (f *TeamFacade) AddCard(ctx context.Context, teamID, cardPK int) error {
	if cardPK <= 0 {
		return invalidf("invalid card pk %d", cardPK)
	}
	return f.services.Teams.AddCard(ctx, teamID, cardPK)
}

// RemoveCard removes a card from a team.
func (f *TeamFacade) RemoveCard(ctx context.Context, teamID, cardPK int) error {
	return f.services.Teams.RemoveCard(ctx, teamID, cardPK)
}

// SetCardDice sets the dice on a card and returns the clamped value stored.
func (f *TeamFacade) SetCardDice(ctx context.Context, teamID, cardPK, dice int) (int, error) {
	return f.services.Teams.SetCardDice(ctx, teamID, cardPK, dice, f.catalog(), f.services.Ownership.Snapshot())
}

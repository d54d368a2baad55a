package handlers

import (
	"context"
	"net/http"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/teams"
)

// TeamService is the team surface used by TeamHandler.
type TeamService interface {
	List(ctx context.Context) ([]*models.Team, error)
	Create(ctx context.Context, name string) (*models.Team, error)
	Rename(ctx context.Context, teamID int, name string) error
	Delete(ctx context.Context, teamID int) error
	Detail(ctx context.Context, teamID int) (*teams.Detail, error)
	AddCard(ctx context.Context, teamID, cardPK int) error
	RemoveCard(ctx context.Context, teamID, cardPK int) error
	SetCardDice(ctx context.Context, teamID, cardPK, dice int) (int, error)
}

// TeamHandler handles team API requests.
type TeamHandler struct {
	facade TeamService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(facade TeamService) *TeamHandler {
	return &TeamHandler{facade: facade}
}

// TeamNameRequest names a team.
type TeamNameRequest struct {
	Name string `json:"name"`
}

// AddCardRequest adds a card to a team.
type AddCardRequest struct {
	CardPK int `json:"cardPk"`
}

// SetDiceRequest sets the dice committed to a team card.
type SetDiceRequest struct {
	Dice int `json:"dice"`
}

// ListTeams returns every team.
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	list, err := h.facade.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*models.Team{}
	}
	response.Success(w, list)
}

// CreateTeam adds a team. A blank name is stored as the default name.
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamNameRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	team, err := h.facade.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, team)
}

// GetTeam returns a team with its cards.
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	detail, err := h.facade.Detail(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, detail)
}

// RenameTeam renames a team.
func (h *TeamHandler) RenameTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	var req TeamNameRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if err := h.facade.Rename(r.Context(), teamID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// DeleteTeam removes a team.
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	if err := h.facade.Delete(r.Context(), teamID); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// AddCard adds a card to a team.
func (h *TeamHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	var req AddCardRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if err := h.facade.AddCard(r.Context(), teamID, req.CardPK); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// RemoveCard removes a card from a team.
func (h *TeamHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	cardPK, err := intParam(r, "cardPK")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	if err := h.facade.RemoveCard(r.Context(), teamID, cardPK); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// SetCardDice sets the dice committed to a team card and returns the
// clamped value.
func (h *TeamHandler) SetCardDice(w http.ResponseWriter, r *http.Request) {
	teamID, err := intParam(r, "teamID")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	cardPK, err := intParam(r, "cardPK")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	var req SetDiceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	dice, err := h.facade.SetCardDice(r.Context(), teamID, cardPK, req.Dice)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, SetDiceRequest{Dice: dice})
}

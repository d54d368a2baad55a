package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/cardfilter"
	"github.com/ramonehamilton/prep-area/internal/proxydice"
	"github.com/ramonehamilton/prep-area/internal/search"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 50
)

// CardService is the card catalog surface used by CardHandler.
type CardService interface {
	Vocabulary(ctx context.Context) *vocabulary.Vocabulary
	Filter(ctx context.Context, sel cardfilter.Selection) cardfilter.Result
	Card(ctx context.Context, cardPK int) (*models.CardRecord, error)
	Suggest(ctx context.Context, query string, limit int) []search.Suggestion
	ProxyDice(ctx context.Context, query string) []proxydice.Group
}

// CardHandler handles card catalog API requests.
type CardHandler struct {
	facade CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(facade CardService) *CardHandler {
	return &CardHandler{facade: facade}
}

// GetVocabulary returns the filter vocabularies.
func (h *CardHandler) GetVocabulary(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.facade.Vocabulary(r.Context()))
}

// FilterCards returns the cards matching a selection, grouped by character.
func (h *CardHandler) FilterCards(w http.ResponseWriter, r *http.Request) {
	var sel cardfilter.Selection
	if err := decodeJSON(r, &sel); err != nil {
		response.BadRequest(w, err)
		return
	}
	response.Success(w, h.facade.Filter(r.Context(), sel))
}

// GetCard returns one card.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardPK, err := intParam(r, "cardPK")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	card, err := h.facade.Card(r.Context(), cardPK)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, card)
}

// Suggest returns search suggestions for a partial query.
func (h *CardHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = min(l, maxSuggestLimit)
		}
	}
	suggestions := h.facade.Suggest(r.Context(), query, limit)
	if suggestions == nil {
		suggestions = []search.Suggestion{}
	}
	response.Success(w, suggestions)
}

// ProxyDice returns the dice that can stand in for the queried ones.
func (h *CardHandler) ProxyDice(w http.ResponseWriter, r *http.Request) {
	groups := h.facade.ProxyDice(r.Context(), r.URL.Query().Get("q"))
	if groups == nil {
		groups = []proxydice.Group{}
	}
	response.Success(w, groups)
}

package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// TradeService is the trade surface used by TradeHandler.
type TradeService interface {
	Policy(name string) (trade.Policy, error)
	Snapshot(ctx context.Context, policy trade.Policy) (*trade.Snapshot, error)
	Export(ctx context.Context, w io.Writer, policy trade.Policy) error
	Import(ctx context.Context, r io.Reader) (*app.PartnerImport, error)
	Reconcile(ctx context.Context, importID string, policy trade.Policy) (*trade.Result, error)
}

// TradeHandler handles trade API requests.
type TradeHandler struct {
	facade TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(facade TradeService) *TradeHandler {
	return &TradeHandler{facade: facade}
}

// policy reads the ?policy= parameter, writing a 400 when it is unknown.
func (h *TradeHandler) policy(w http.ResponseWriter, r *http.Request) (trade.Policy, bool) {
	p, err := h.facade.Policy(r.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, err)
		return p, false
	}
	return p, true
}

// GetSnapshot returns the local spare and need positions.
func (h *TradeHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}
	snap, err := h.facade.Snapshot(r.Context(), policy)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, snap)
}

// Export downloads the local trade CSV.
func (h *TradeHandler) Export(w http.ResponseWriter, r *http.Request) {
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}
	if err := response.Attachment(w, "text/csv; charset=utf-8", "trade.csv", func(out io.Writer) error {
		return h.facade.Export(r.Context(), out, policy)
	}); err != nil {
		writeError(w, err)
	}
}

// Import parses a partner trade CSV and returns its import id.
func (h *TradeHandler) Import(w http.ResponseWriter, r *http.Request) {
	imp, err := h.facade.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, imp)
}

// Reconcile matches the local position against a partner import.
func (h *TradeHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}
	result, err := h.facade.Reconcile(r.Context(), chi.URLParam(r, "importID"), policy)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, result)
}

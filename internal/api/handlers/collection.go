package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/importer"
)

// CollectionService is the ownership surface used by CollectionHandler.
type CollectionService interface {
	Snapshot(ctx context.Context) *collection.Snapshot
	ApplyCardDelta(ctx context.Context, cardPK int, req app.CardDeltaRequest) (*app.CardDeltaResult, error)
	ApplyDiceDelta(ctx context.Context, req app.DiceDeltaRequest) (*app.DiceDeltaResult, error)
	Stats(ctx context.Context) *collection.Stats
	RenderStatsChart(ctx context.Context, w io.Writer) error
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (*importer.CollectionReport, error)
}

// CollectionHandler handles collection-related API requests.
type CollectionHandler struct {
	facade CollectionService
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(facade CollectionService) *CollectionHandler {
	return &CollectionHandler{facade: facade}
}

// GetSnapshot returns the owned card and dice counts.
func (h *CollectionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.facade.Snapshot(r.Context()))
}

// ApplyCardDelta adds or removes copies of a card.
func (h *CollectionHandler) ApplyCardDelta(w http.ResponseWriter, r *http.Request) {
	cardPK, err := intParam(r, "cardPK")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	var req app.CardDeltaRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	result, err := h.facade.ApplyCardDelta(r.Context(), cardPK, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, result)
}

// ApplyDiceDelta adds or removes dice of a character.
func (h *CollectionHandler) ApplyDiceDelta(w http.ResponseWriter, r *http.Request) {
	var req app.DiceDeltaRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	result, err := h.facade.ApplyDiceDelta(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, result)
}

// GetStats returns the collection statistics.
func (h *CollectionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.facade.Stats(r.Context()))
}

// GetStatsChart returns the collection statistics as an HTML chart page.
func (h *CollectionHandler) GetStatsChart(w http.ResponseWriter, r *http.Request) {
	if err := response.HTML(w, func(out io.Writer) error {
		return h.facade.RenderStatsChart(r.Context(), out)
	}); err != nil {
		writeError(w, err)
	}
}

// Export downloads the collection CSV.
func (h *CollectionHandler) Export(w http.ResponseWriter, r *http.Request) {
	if err := response.Attachment(w, "text/csv; charset=utf-8", "collection.csv", func(out io.Writer) error {
		return h.facade.Export(r.Context(), out)
	}); err != nil {
		writeError(w, err)
	}
}

// Import merges an uploaded collection CSV into the collection.
func (h *CollectionHandler) Import(w http.ResponseWriter, r *http.Request) {
	report, err := h.facade.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, report)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/export"
	"github.com/ramonehamilton/prep-area/internal/importer"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage"
	"github.com/ramonehamilton/prep-area/internal/storage/repository"
)

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var missing *importer.MissingColumnError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, app.ErrNotReady):
		response.ServiceUnavailable(w, err)
	case errors.As(err, &tooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, importer.ErrEmptyCSV),
		errors.Is(err, storage.ErrNotEncrypted),
		errors.As(err, &missing):
		response.BadRequest(w, err)
	case errors.Is(err, storage.ErrDecryptFailed):
		response.Error(w, http.StatusUnauthorized, err)
	case errors.Is(err, app.ErrImportNotFound),
		errors.Is(err, repository.ErrTeamNotFound),
		errors.Is(err, storage.ErrBackupNotFound),
		errors.Is(err, export.ErrNothingToExport):
		response.NotFound(w, err)
	case errors.Is(err, reference.ErrNoLookupTable):
		response.Error(w, http.StatusConflict, err)
	default:
		response.InternalError(w, err)
	}
}

// decodeJSON decodes a request body, treating an empty body as the zero value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// intParam reads a positive integer URL parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

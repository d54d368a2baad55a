package handlers

import (
	"context"
	"net/http"

	"github.com/ramonehamilton/prep-area/internal/api/response"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/storage"
)

// SystemService is the status and backup surface used by SystemHandler.
type SystemService interface {
	Status(ctx context.Context) *app.Status
	Ping(ctx context.Context) error
	Reload(ctx context.Context) (*app.Status, error)
	Backup(ctx context.Context, req app.BackupRequest) (*storage.BackupInfo, error)
	ListBackups(ctx context.Context) ([]storage.BackupInfo, error)
	Restore(ctx context.Context, req app.RestoreRequest) error
}

// SystemHandler handles status, reload and backup API requests.
type SystemHandler struct {
	facade SystemService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(facade SystemService) *SystemHandler {
	return &SystemHandler{facade: facade}
}

// Health reports whether the user database answers and the reference
// catalog is loaded.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.facade.Status(r.Context())
	body := map[string]any{
		"status":     "healthy",
		"service":    "prep-area-api",
		"version":    status.Version,
		"ready":      status.Ready,
		"generation": status.Generation,
	}
	if err := h.facade.Ping(r.Context()); err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		response.JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	response.JSON(w, http.StatusOK, body)
}

// GetStatus returns the application status.
func (h *SystemHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.facade.Status(r.Context()))
}

// Reload rereads the reference database.
func (h *SystemHandler) Reload(w http.ResponseWriter, r *http.Request) {
	status, err := h.facade.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, status)
}

// CreateBackup snapshots the user database.
func (h *SystemHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req app.BackupRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	info, err := h.facade.Backup(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, info)
}

// ListBackups returns the available backups.
func (h *SystemHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.facade.ListBackups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []storage.BackupInfo{}
	}
	response.Success(w, list)
}

// RestoreBackup replaces the user data with a backup.
func (h *SystemHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req app.RestoreRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.Name == "" {
		response.BadRequest(w, errRequired("name"))
		return
	}
	if err := h.facade.Restore(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/storage"
	"github.com/ramonehamilton/prep-area/internal/version"
)

// SystemFacade reports status and manages reloads and backups.
type SystemFacade struct {
	services *Services
}

// NewSystemFacade creates a new SystemFacade with the given services.
func NewSystemFacade(services *Services) *SystemFacade {
	return &SystemFacade{services: services}
}

// Status describes the running application.
type Status struct {
	Version           string `json:"version"`
	Ready             bool   `json:"ready"`
	Generation        uint64 `json:"generation"`
	Cards             int    `json:"cards"`
	HasLookup         bool   `json:"hasLookup"`
	OwnershipVersion  uint64 `json:"ownershipVersion"`
	PendingWrites     int    `json:"pendingWrites"`
	UserDatabase      string `json:"userDatabase"`
	ReferenceDatabase string `json:"referenceDatabase"`

	BackupScheduler *storage.SchedulerStatus `json:"backupScheduler,omitempty"`
}

// Status returns the application status.
func (f *SystemFacade) Status(_ context.Context) *Status {
	st := &Status{
		Version:           version.GetVersion(),
		OwnershipVersion:  f.services.Ownership.Version(),
		PendingWrites:     f.services.Ownership.Pending(),
		UserDatabase:      f.services.UserDB.Path(),
		ReferenceDatabase: f.services.Reference.Path(),
	}
	if f.services.Scheduler != nil {
		st.BackupScheduler = f.services.Scheduler.Status()
	}
	if catalog, err := f.services.Reference.Current(); err == nil {
		st.Ready = true
		st.Generation = catalog.Generation
		st.Cards = len(catalog.Cards)
		st.HasLookup = catalog.HasLookup()
	}
	return st
}

// Ping checks the user database connection.
func (f *SystemFacade) Ping(ctx context.Context) error {
	return f.services.UserDB.Ping(ctx)
}

// Reload rereads the reference database and drops cached filter results.
func (f *SystemFacade) Reload(ctx context.Context) (*Status, error) {
	if _, err := f.services.Reference.Reload(ctx); err != nil {
		return nil, err
	}
	f.services.Filter.Purge()
	return f.Status(ctx), nil
}

// BackupRequest names and optionally encrypts a backup.
type BackupRequest struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// Backup flushes pending ownership changes and snapshots the user database.
func (f *SystemFacade) Backup(ctx context.Context, req BackupRequest) (*storage.BackupInfo, error) {
	if err := f.services.Ownership.Flush(ctx); err != nil {
		return nil, err
	}
	info, err := f.services.Backups.Backup(ctx, &storage.BackupOptions{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}
	f.services.Logger.Info("Backup created", "name", info.Name, "encrypted", info.Encrypted)
	return info, nil
}

// ListBackups returns the available backups, newest first.
func (f *SystemFacade) ListBackups(_ context.Context) ([]storage.BackupInfo, error) {
	return f.services.Backups.ListBackups()
}

// RestoreRequest selects a backup by file name.
type RestoreRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

// Restore replaces teams, ownership and dice with a backup and reloads the
// ownership store.
func (f *SystemFacade) Restore(ctx context.Context, req RestoreRequest) error {
	path, err := f.services.Backups.Resolve(req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrBackupNotFound) {
			return &AppError{Message: fmt.Sprintf("backup %q not found", req.Name), Err: err}
		}
		return err
	}
	encrypted, err := storage.IsEncrypted(path)
	if err != nil {
		return err
	}
	if encrypted && req.Password == "" {
		return invalidf("backup %q is encrypted: password required", req.Name)
	}

	if err := f.services.Ownership.Flush(ctx); err != nil {
		f.services.Logger.Warn("Flush before restore failed", "error", err)
	}
	if err := f.services.Backups.Restore(ctx, path, req.Password); err != nil {
		return err
	}
	if err := f.services.Ownership.Load(ctx, f.services.collectionRepo); err != nil {
		return fmt.Errorf("failed to reload collection after restore: %w", err)
	}
	f.services.Filter.Purge()

	f.services.Logger.Info("Backup restored", "name", req.Name)
	events.Publish(f.services.Events, ctx, events.TypeBackupRestored, events.BackupRestoredEvent{
		Path:      path,
		Encrypted: encrypted,
	})
	return nil
}

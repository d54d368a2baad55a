package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBackupScheduler_Defaults(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, ""), nil, nil)

	if scheduler.config.Interval != 24*time.Hour {
		t.Errorf("Expected default interval 24h, got %v", scheduler.config.Interval)
	}
	if scheduler.config.KeepLast != 10 {
		t.Errorf("Expected default KeepLast 10, got %d", scheduler.config.KeepLast)
	}
	if scheduler.IsRunning() {
		t.Error("Scheduler should not be running before Start")
	}
}

func TestBackupScheduler_StartStop(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, ""), nil, &SchedulerConfig{Interval: time.Hour})

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !scheduler.IsRunning() {
		t.Error("Expected scheduler to be running")
	}
	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("Expected error starting a running scheduler")
	}

	if err := scheduler.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("Expected scheduler to be stopped")
	}
	if err := scheduler.Stop(); err == nil {
		t.Error("Expected error stopping a stopped scheduler")
	}
}

func TestBackupScheduler_InvalidInterval(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, ""), nil, &SchedulerConfig{})
	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestBackupScheduler_RunsBackups(t *testing.T) {
	db := openFileDB(t)
	seedUserDB(t, db)
	bm := NewBackupManager(db, "")

	var calls atomic.Int32
	completed := make(chan error, 4)
	backup := func(ctx context.Context) (*BackupInfo, error) {
		n := calls.Add(1)
		return bm.Backup(ctx, &BackupOptions{Name: backupPrefix + "run-" + string(rune('a'+n))})
	}
	scheduler := NewBackupScheduler(bm, backup, &SchedulerConfig{
		Interval:         time.Hour,
		StartImmediately: true,
		OnBackupComplete: func(_ *BackupInfo, err error) { completed <- err },
	})

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	select {
	case err := <-completed:
		if err != nil {
			t.Fatalf("Scheduled backup failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for immediate backup")
	}

	st := scheduler.Status()
	if !st.Running || st.BackupCount != 1 || st.FailureCount != 0 {
		t.Errorf("Unexpected status %+v", st)
	}
	if st.NextBackup.IsZero() {
		t.Error("Expected NextBackup to be set")
	}
	if !strings.Contains(st.String(), "Total Backups: 1") {
		t.Errorf("Unexpected status string %q", st.String())
	}

	backups, err := bm.ListBackups()
	if err != nil || len(backups) != 1 {
		t.Fatalf("ListBackups() = %d backups, err %v", len(backups), err)
	}
}

func TestBackupScheduler_RecordsFailures(t *testing.T) {
	db := openFileDB(t)
	completed := make(chan error, 1)
	scheduler := NewBackupScheduler(NewBackupManager(db, ""),
		func(context.Context) (*BackupInfo, error) { return nil, errors.New("disk full") },
		&SchedulerConfig{
			Interval:         time.Hour,
			StartImmediately: true,
			OnBackupComplete: func(_ *BackupInfo, err error) { completed <- err },
		})

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for backup attempt")
	}

	st := scheduler.Status()
	if st.FailureCount != 1 || st.LastError != "disk full" {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestBackupScheduler_StopsWithContext(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, ""), nil, &SchedulerConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Scheduler did not stop after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBackupManager_Cleanup(t *testing.T) {
	db := openFileDB(t)
	seedUserDB(t, db)
	bm := NewBackupManager(db, "")
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		info, err := bm.Backup(ctx, &BackupOptions{Name: backupPrefix + name, SkipVerify: true})
		if err != nil {
			t.Fatalf("Backup() error = %v", err)
		}
		mod := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(info.Path, mod, mod); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}
	if _, err := bm.Backup(ctx, &BackupOptions{Name: "keepsake", SkipVerify: true}); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	removed, err := bm.Cleanup(1)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Cleanup() removed %d, want 2", removed)
	}

	for _, name := range []string{backupPrefix + "2024-01-03" + backupExt, "keepsake" + backupExt} {
		if _, err := os.Stat(filepath.Join(bm.Dir(), name)); err != nil {
			t.Errorf("Expected %s to remain: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(bm.Dir(), backupPrefix+"2024-01-01"+backupExt)); !os.IsNotExist(err) {
		t.Error("Expected oldest backup to be removed")
	}

	if removed, err := bm.Cleanup(0); err != nil || removed != 0 {
		t.Errorf("Cleanup(0) = %d, %v; want no-op", removed, err)
	}
}

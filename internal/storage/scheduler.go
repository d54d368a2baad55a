package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// BackupFunc takes one backup. Callers use it to flush pending writes
// before the snapshot.
type BackupFunc func(ctx context.Context) (*BackupInfo, error)

// SchedulerConfig holds configuration for the backup scheduler.
type SchedulerConfig struct {
	// Interval is how often to run backups.
	Interval time.Duration

	// KeepLast is how many automatic backups to retain. 0 keeps all.
	// Named backups are never removed.
	KeepLast int

	// StartImmediately runs a backup when the scheduler starts.
	StartImmediately bool

	// OnBackupComplete is called after each backup attempt.
	OnBackupComplete func(info *BackupInfo, err error)

	Logger *slog.Logger
}

// DefaultSchedulerConfig returns a scheduler config with daily backups.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 24 * time.Hour,
		KeepLast: 10,
	}
}

// BackupScheduler takes automatic backups on an interval and prunes old
// ones.
type BackupScheduler struct {
	manager *BackupManager
	backup  BackupFunc
	config  *SchedulerConfig
	logger  *slog.Logger

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	lastBackup   time.Time
	lastError    error
	backupCount  int
	failureCount int
}

// NewBackupScheduler creates a scheduler. A nil backup func takes plain
// unnamed backups through manager.
func NewBackupScheduler(manager *BackupManager, backup BackupFunc, config *SchedulerConfig) *BackupScheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if backup == nil {
		backup = func(ctx context.Context) (*BackupInfo, error) {
			return manager.Backup(ctx, nil)
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupScheduler{
		manager: manager,
		backup:  backup,
		config:  config,
		logger:  logger.With("component", "backup-scheduler"),
	}
}

// Start runs the scheduler until Stop is called or ctx is done.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("invalid backup interval %s", s.config.Interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	return nil
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *BackupScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *BackupScheduler) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	if s.config.StartImmediately {
		s.runBackup(ctx)
	}
	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runBackup takes a backup, prunes old ones and updates the statistics.
func (s *BackupScheduler) runBackup(ctx context.Context) {
	info, err := s.backup(ctx)
	if err == nil && s.config.KeepLast > 0 {
		if removed, cleanErr := s.manager.Cleanup(s.config.KeepLast); cleanErr != nil {
			s.logger.Warn("Backup cleanup failed", "error", cleanErr)
		} else if removed > 0 {
			s.logger.Debug("Removed old backups", "count", removed)
		}
	}

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.backupCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled backup failed", "error", err)
	} else {
		s.logger.Info("Scheduled backup created", "name", info.Name)
	}
	if s.config.OnBackupComplete != nil {
		s.config.OnBackupComplete(info, err)
	}
}

// IsRunning returns whether the scheduler is currently running.
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the current scheduler status.
func (s *BackupScheduler) Status() *SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &SchedulerStatus{
		Running:      s.running,
		Interval:     s.config.Interval,
		LastBackup:   s.lastBackup,
		BackupCount:  s.backupCount,
		FailureCount: s.failureCount,
	}
	if s.running && !s.lastBackup.IsZero() {
		st.NextBackup = s.lastBackup.Add(s.config.Interval)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	LastBackup   time.Time     `json:"lastBackup"`
	NextBackup   time.Time     `json:"nextBackup"`
	BackupCount  int           `json:"backupCount"`
	FailureCount int           `json:"failureCount"`
	LastError    string        `json:"lastError,omitempty"`
}

// String returns a human-readable representation of the scheduler status.
func (s *SchedulerStatus) String() string {
	if !s.Running {
		return "Scheduler: Stopped"
	}

	var b strings.Builder
	b.WriteString("Scheduler: Running\n")
	fmt.Fprintf(&b, "  Interval: %s\n", s.Interval)
	fmt.Fprintf(&b, "  Total Backups: %d\n", s.BackupCount)
	fmt.Fprintf(&b, "  Failures: %d\n", s.FailureCount)
	if !s.LastBackup.IsZero() {
		fmt.Fprintf(&b, "  Last Backup: %s\n", s.LastBackup.Format(time.RFC3339))
	}
	if !s.NextBackup.IsZero() {
		fmt.Fprintf(&b, "  Next Backup: %s\n", s.NextBackup.Format(time.RFC3339))
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "  Last Error: %s\n", s.LastError)
	}
	return b.String()
}

// Cleanup removes the oldest automatic backups so at most keep remain.
// Backups created with an explicit name are left alone.
func (bm *BackupManager) Cleanup(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := bm.ListBackups()
	if err != nil {
		return 0, err
	}

	removed := 0
	kept := 0
	for _, b := range backups {
		if !strings.HasPrefix(b.Name, backupPrefix) {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", b.Name, err)
		}
		removed++
	}
	return removed, nil
}

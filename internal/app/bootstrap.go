package app

import (
	"fmt"
	"log/slog"

	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/storage"
)

// OptionsFromConfig builds New's options from a validated configuration.
// Relative paths resolve against the configured data directory.
func OptionsFromConfig(cfg *config.Config, dispatcher *events.EventDispatcher, logger *slog.Logger) (Options, error) {
	flushDelay, err := cfg.GetFlushDelay()
	if err != nil {
		return Options{}, fmt.Errorf("invalid flush delay: %w", err)
	}

	backupInterval, err := cfg.GetBackupInterval()
	if err != nil {
		return Options{}, fmt.Errorf("invalid backup interval: %w", err)
	}

	snapshot := ""
	if cfg.Reference.VocabularySnapshot != "" {
		snapshot = cfg.Resolve(cfg.Reference.VocabularySnapshot)
	}

	return Options{
		Reference: ReferenceConfig{
			Path:         cfg.Resolve(cfg.Reference.Path),
			SnapshotPath: snapshot,
			Events:       dispatcher,
			Logger:       logger,
		},
		UserDB:     storage.DefaultConfig(cfg.Resolve(cfg.UserDB.Path)),
		BackupDir:  cfg.Resolve(cfg.UserDB.BackupDir),
		FlushDelay: flushDelay,

		BackupInterval: backupInterval,
		BackupKeep:     cfg.UserDB.BackupKeep,

		Policy:     cfg.GetTradePolicy(),
		DiceLink:   cfg.GetDiceLink(),
		FilterSize: cfg.Cache.FilterResults,
		Events:     dispatcher,
		Logger:     logger,
	}, nil
}

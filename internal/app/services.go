// Package app holds the application services and the facades the API and
// CLI call into.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ramonehamilton/prep-area/internal/cardfilter"
	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/storage"
	"github.com/ramonehamilton/prep-area/internal/storage/repository"
	"github.com/ramonehamilton/prep-area/internal/teams"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// maxPartnerImports bounds the trade partner lists kept in memory.
const maxPartnerImports = 32

var (
	// ErrNotReady is returned when the reference catalog is not loaded.
	ErrNotReady = errors.New("reference catalog is not loaded")

	// ErrInvalidInput marks errors caused by bad caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrImportNotFound is returned for unknown or evicted trade imports.
	ErrImportNotFound = errors.New("trade import not found")
)

// AppError is an error with a user-facing message.
type AppError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...any) error {
	return &AppError{Message: fmt.Sprintf(format, args...), Err: ErrInvalidInput}
}

// Options configures New.
type Options struct {
	Reference  ReferenceConfig
	UserDB     *storage.Config
	BackupDir  string
	FlushDelay time.Duration

	// BackupInterval enables automatic backups; BackupKeep bounds how many
	// of them are retained.
	BackupInterval time.Duration
	BackupKeep     int

	Policy     trade.Policy
	DiceLink   collection.DiceLink
	FilterSize int

	Events *events.EventDispatcher
	Logger *slog.Logger
}

// Services contains the shared state behind every facade.
type Services struct {
	Context context.Context
	Logger  *slog.Logger
	Events  *events.EventDispatcher

	Reference *ReferenceHolder
	UserDB    *storage.DB
	Ownership *collection.Store
	Teams     *teams.Service
	Backups   *storage.BackupManager
	Scheduler *storage.BackupScheduler // nil when automatic backups are off
	Filter    *cardfilter.Engine

	Policy   trade.Policy
	DiceLink collection.DiceLink

	collectionRepo repository.CollectionRepository
	partners       *lru.Cache
}

// New opens the user database, loads ownership and tries to load the
// reference catalog. A missing or unreadable reference database is logged
// and leaves the services in the not-ready state.
func New(ctx context.Context, opts Options) (*Services, error) {
	if opts.UserDB == nil {
		return nil, fmt.Errorf("user database config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = events.NewEventDispatcher()
	}
	opts.Reference.Events = opts.Events
	if opts.Reference.Logger == nil {
		opts.Reference.Logger = logger
	}

	db, err := storage.Open(opts.UserDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %w", err)
	}

	s, err := newServices(ctx, db, opts, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := s.Reference.Reload(ctx); err != nil {
		logger.Warn("Reference catalog unavailable", "path", s.Reference.Path(), "error", err)
	}

	if opts.BackupInterval > 0 {
		s.Scheduler = storage.NewBackupScheduler(s.Backups, s.flushAndBackup, &storage.SchedulerConfig{
			Interval: opts.BackupInterval,
			KeepLast: opts.BackupKeep,
			Logger:   logger,
		})
		if err := s.Scheduler.Start(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("failed to start backup scheduler: %w", err)
		}
	}
	return s, nil
}

// flushAndBackup writes pending ownership changes, then takes an unnamed
// backup.
func (s *Services) flushAndBackup(ctx context.Context) (*storage.BackupInfo, error) {
	if err := s.Ownership.Flush(ctx); err != nil {
		return nil, err
	}
	return s.Backups.Backup(ctx, nil)
}

func newServices(ctx context.Context, db *storage.DB, opts Options, logger *slog.Logger) (*Services, error) {
	filter, err := cardfilter.NewEngine(opts.FilterSize)
	if err != nil {
		return nil, err
	}
	partners, err := lru.New(maxPartnerImports)
	if err != nil {
		return nil, fmt.Errorf("failed to create partner cache: %w", err)
	}

	dispatcher := opts.Events
	collectionRepo := repository.NewCollectionRepository(db.Conn())
	ownership := collection.NewStore(collection.StoreConfig{
		Persister:  collectionRepo,
		FlushDelay: opts.FlushDelay,
		Logger:     logger.With("component", "ownership"),
		OnChange: func(version uint64) {
			events.Publish(dispatcher, ctx, events.TypeCollectionUpdated, events.CollectionUpdatedEvent{Version: version})
		},
	})
	if err := ownership.Load(ctx, collectionRepo); err != nil {
		return nil, err
	}

	teamService, err := teams.NewService(teams.Config{
		Repository: repository.NewTeamRepository(db.Conn()),
		Logger:     logger.With("component", "teams"),
		OnChange: func(teamID int, action string) {
			events.Publish(dispatcher, ctx, events.TypeTeamsUpdated, events.TeamsUpdatedEvent{TeamID: teamID, Action: action})
		},
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		Context:        ctx,
		Logger:         logger,
		Events:         dispatcher,
		Reference:      NewReferenceHolder(opts.Reference),
		UserDB:         db,
		Ownership:      ownership,
		Teams:          teamService,
		Backups:        storage.NewBackupManager(db, opts.BackupDir),
		Filter:         filter,
		Policy:         opts.Policy,
		DiceLink:       opts.DiceLink,
		collectionRepo: collectionRepo,
		partners:       partners,
	}, nil
}

// Close flushes pending ownership changes and closes the user database.
func (s *Services) Close(ctx context.Context) error {
	if s.Scheduler != nil && s.Scheduler.IsRunning() {
		_ = s.Scheduler.Stop()
	}
	flushErr := s.Ownership.Close(ctx)
	if err := s.UserDB.Close(); err != nil {
		return fmt.Errorf("failed to close user database: %w", err)
	}
	return flushErr
}

// Facades groups one instance of every facade over shared services.
type Facades struct {
	Card       *CardFacade
	Collection *CollectionFacade
	Trade      *TradeFacade
	Team       *TeamFacade
	System     *SystemFacade
}

// NewFacades creates every facade.
func NewFacades(s *Services) *Facades {
	return &Facades{
		Card:       NewCardFacade(s),
		Collection: NewCollectionFacade(s),
		Trade:      NewTradeFacade(s),
		Team:       NewTeamFacade(s),
		System:     NewSystemFacade(s),
	}
}

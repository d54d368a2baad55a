package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix       = "prep-area-backup-"
	backupExt          = ".sqlite"
	encryptedBackupExt = ".sqlite.enc"
)

// ErrBackupNotFound is returned when a named backup does not exist.
var ErrBackupNotFound = errors.New("backup not found")

// userTables are the tables a restore replaces, in delete order.
var userTables = []struct {
	name    string
	columns string
}{
	{"team_cards", "team_id, card_pk, dice_count"},
	{"teams", "team_id, name, created_at, updated_at"},
	{"collection_dice", "character_name, set_group, dice_count"},
	{"collection", "card_pk, have_dice, have_cards, have_foil, want, notes"},
}

// BackupManager writes and restores snapshots of the user database.
type BackupManager struct {
	db  *DB
	dir string
}

// NewBackupManager creates a backup manager storing backups in dir. An empty
// dir uses a "backups" directory next to the database file.
func NewBackupManager(db *DB, dir string) *BackupManager {
	if dir == "" {
		dir = filepath.Join(filepath.Dir(db.Path()), "backups")
	}
	return &BackupManager{db: db, dir: dir}
}

// Dir returns the backup directory.
func (bm *BackupManager) Dir() string {
	return bm.dir
}

// BackupOptions control a single backup.
type BackupOptions struct {
	// Name is the backup file name without extension. Default: timestamped.
	Name string

	// Password encrypts the backup with Argon2id and AES-256-GCM when set.
	Password string

	// SkipVerify disables opening the written snapshot to check it.
	SkipVerify bool
}

// BackupInfo describes a backup file.
type BackupInfo struct {
	Path      string    `json:"-"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	Checksum  string    `json:"checksum"`
	Encrypted bool      `json:"encrypted"`
}

// Backup snapshots the live database with VACUUM INTO, which needs no
// exclusive lock, and optionally encrypts the result.
func (bm *BackupManager) Backup(ctx context.Context, opts *BackupOptions) (*BackupInfo, error) {
	if opts == nil {
		opts = &BackupOptions{}
	}
	if err := os.MkdirAll(bm.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = backupPrefix + time.Now().UTC().Format("2006-01-02-15-04-05")
	}
	name = filepath.Base(name)
	plainPath := filepath.Join(bm.dir, name+backupExt)
	if opts.Password != "" {
		plainPath = filepath.Join(bm.dir, name+".tmp"+backupExt)
	}
	_ = os.Remove(plainPath)

	if _, err := bm.db.conn.ExecContext(ctx, "VACUUM INTO ?", plainPath); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	if !opts.SkipVerify {
		if err := VerifyBackup(ctx, plainPath); err != nil {
			_ = os.Remove(plainPath)
			return nil, fmt.Errorf("backup verification failed: %w", err)
		}
	}

	finalPath := plainPath
	if opts.Password != "" {
		finalPath = filepath.Join(bm.dir, name+encryptedBackupExt)
		err := EncryptFile(plainPath, finalPath, DefaultEncryptionConfig(opts.Password))
		_ = os.Remove(plainPath)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt backup: %w", err)
		}
	}

	return describeBackup(finalPath)
}

// ListBackups returns the backups in the backup directory, newest first.
func (bm *BackupManager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}
		info, err := describeBackup(filepath.Join(bm.dir, entry.Name()))
		if err != nil {
			continue
		}
		backups = append(backups, *info)
	}
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Resolve returns the path of a backup by file name. Directory components
// are stripped so only files inside the backup directory resolve.
func (bm *BackupManager) Resolve(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if !isBackupName(base) {
		return "", ErrBackupNotFound
	}
	path := filepath.Join(bm.dir, base)
	if _, err := os.Stat(path); err != nil {
		return "", ErrBackupNotFound
	}
	return path, nil
}

// Restore replaces every team, ownership and dice row of the live database
// with the contents of the backup at path. Encrypted backups need password.
func (bm *BackupManager) Restore(ctx context.Context, path, password string) error {
	encrypted, err := IsEncrypted(path)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	source := path
	if encrypted {
		if password == "" {
			return fmt.Errorf("backup is encrypted: password required")
		}
		if err := os.MkdirAll(bm.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
		tmp, err := os.CreateTemp(bm.dir, "restore-*.tmp")
		if err != nil {
			return fmt.Errorf("failed to create temporary restore file: %w", err)
		}
		source = tmp.Name()
		_ = tmp.Close()
		defer func() { _ = os.Remove(source) }()

		if err := DecryptFile(path, source, DefaultEncryptionConfig(password)); err != nil {
			return err
		}
	}

	if err := VerifyBackup(ctx, source); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}
	return bm.db.replaceFrom(ctx, source)
}

// replaceFrom copies the user tables of the database file at source over
// the live tables in one transaction. ATTACH is per connection, so the work
// runs on a single pinned connection.
func (db *DB) replaceFrom(ctx context.Context, source string) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS restore_src", source); err != nil {
		return fmt.Errorf("failed to attach backup: %w", err)
	}
	defer func() { _, _ = conn.ExecContext(context.Background(), "DETACH DATABASE restore_src") }()

	present := make(map[string]bool, len(userTables))
	rows, err := conn.QueryContext(ctx, "SELECT name FROM restore_src.sqlite_master WHERE type = 'table'")
	if err != nil {
		return fmt.Errorf("failed to inspect backup: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to inspect backup: %w", err)
		}
		present[name] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect backup: %w", err)
	}

	return runInTx(ctx, conn, func(tx *sql.Tx) error {
		for _, t := range userTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM main."+t.name); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t.name, err)
			}
		}
		for i := len(userTables) - 1; i >= 0; i-- {
			t := userTables[i]
			if !present[t.name] {
				continue
			}
			query := fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM restore_src.%s", t.name, t.columns, t.columns, t.name)
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to restore %s: %w", t.name, err)
			}
		}
		return nil
	})
}

// VerifyBackup checks that path is a readable SQLite database holding the
// collection table.
func VerifyBackup(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'collection'").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to query backup database: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("backup has no collection table")
	}
	return nil
}

func isBackupName(name string) bool {
	return strings.HasSuffix(name, backupExt) || strings.HasSuffix(name, encryptedBackupExt)
}

func describeBackup(path string) (*BackupInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	checksum, err := calculateChecksum(path)
	if err != nil {
		checksum = "unknown"
	}
	return &BackupInfo{
		Path:      path,
		Name:      info.Name(),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Checksum:  checksum,
		Encrypted: strings.HasSuffix(path, encryptedBackupExt),
	}, nil
}

// calculateChecksum calculates the SHA-256 checksum of a file.
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpen_FileMigrates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "user.sqlite")

	db, err := Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	for _, table := range []string{"collection", "collection_dice", "teams", "team_cards"} {
		assertTable(t, db, table)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("NewMigrationManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()
	version, dirty, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Version() = %d dirty=%v, want 1 clean", version, dirty)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "user.sqlite")

	db, err := Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Conn().Exec(`INSERT INTO collection (card_pk, have_cards) VALUES (1, 2)`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	_ = db.Close()

	db, err = Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = db.Close() }()

	var have int
	if err := db.Conn().QueryRow(`SELECT have_cards FROM collection WHERE card_pk = 1`).Scan(&have); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if have != 2 {
		t.Errorf("have_cards = %d, want 2", have)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	assertTable(t, db, "team_cards")
}

func TestOpen_NilConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Open(nil) should fail")
	}
}

func TestWithTransaction(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO teams (name) VALUES ('kept')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO teams (name) VALUES ('dropped')`); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from failing transaction")
	}

	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 1 {
		t.Errorf("team count = %d, want 1", count)
	}
}

func assertTable(t *testing.T, db *DB, name string) {
	t.Helper()
	var count int
	err := db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Errorf("table %s missing", name)
	}
}

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ramonehamilton/prep-area/internal/storage"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// setupUserTestDB creates a migrated in-memory user database.
func setupUserTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Error closing database: %v", err)
		}
	})
	return db.Conn()
}

func TestCollectionRepository_UpsertCards(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	err := repo.UpsertCards(ctx, []models.CollectionEntry{
		{CardPK: 10, Standard: 2, Foil: 1},
		{CardPK: 11, Standard: 1},
		{CardPK: 0, Standard: 9},
	})
	if err != nil {
		t.Fatalf("failed to upsert cards: %v", err)
	}

	err = repo.UpsertCards(ctx, []models.CollectionEntry{{CardPK: 10, Standard: 3, Foil: -2}})
	if err != nil {
		t.Fatalf("failed to update card: %v", err)
	}

	rows, err := repo.ListCollection(ctx)
	if err != nil {
		t.Fatalf("failed to list collection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].CardPK != 10 || *rows[0].HaveCards != 3 || *rows[0].HaveFoil != 0 {
		t.Errorf("unexpected row for card 10: pk=%d cards=%v foil=%v", rows[0].CardPK, *rows[0].HaveCards, *rows[0].HaveFoil)
	}
	if rows[1].CardPK != 11 || *rows[1].HaveCards != 1 {
		t.Errorf("unexpected row for card 11: %+v", rows[1])
	}
}

func TestCollectionRepository_ListEmpty(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewCollectionRepository(db)

	rows, err := repo.ListCollection(context.Background())
	if err != nil {
		t.Fatalf("failed to list collection: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestCollectionRepository_UpsertDice(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	err := repo.UpsertDice(ctx, []models.DiceCount{
		{Character: "Hulk", SetGroup: "avx", Count: 4},
		{Character: "Thor", SetGroup: "Other", Count: 1},
		{Character: "", SetGroup: "avx", Count: 3},
	})
	if err != nil {
		t.Fatalf("failed to upsert dice: %v", err)
	}
	if err := repo.UpsertDice(ctx, []models.DiceCount{{Character: "Hulk", SetGroup: "avx", Count: 6}}); err != nil {
		t.Fatalf("failed to update dice: %v", err)
	}

	rows, err := repo.ListDice(ctx)
	if err != nil {
		t.Fatalf("failed to list dice: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 dice rows, got %d", len(rows))
	}
	if rows[0].Character != "Hulk" || rows[0].SetGroup != "avx" || *rows[0].Count != 6 {
		t.Errorf("unexpected Hulk row: %+v", rows[0])
	}
	if rows[1].Character != "Thor" || *rows[1].Count != 1 {
		t.Errorf("unexpected Thor row: %+v", rows[1])
	}
}

func TestCollectionRepository_EmptyBatch(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewCollectionRepository(db)

	if err := repo.UpsertCards(context.Background(), nil); err != nil {
		t.Errorf("UpsertCards(nil) error = %v", err)
	}
	if err := repo.UpsertDice(context.Background(), nil); err != nil {
		t.Errorf("UpsertDice(nil) error = %v", err)
	}
}

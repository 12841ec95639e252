package storage

import (
	"context"
	"path/filepath"
	"testing"

	"gofinances/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "gofinances.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCategoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	missing, err := repo.FindByTitle(ctx, "Housing")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for absent category")
	}

	created, err := repo.Create(ctx, "Housing")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}

	found, err := repo.FindByTitle(ctx, "Housing")
	if err != nil || found == nil {
		t.Fatalf("expected category, got %v (err=%v)", found, err)
	}
	if found.ID != created.ID || found.Title != "Housing" {
		t.Fatalf("unexpected category %+v", found)
	}
}

func TestFindByTitlesUsesSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bulk, err := repo.CreateBulk(ctx, []string{"Salary", "Housing", "Food"})
	if err != nil {
		t.Fatalf("create bulk: %v", err)
	}
	if len(bulk) != 3 {
		t.Fatalf("expected 3 created, got %d", len(bulk))
	}

	found, err := repo.FindByTitles(ctx, []string{"Salary", "Food", "Unknown"})
	if err != nil {
		t.Fatalf("find by titles: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}

	found, err = repo.FindByTitles(ctx, nil)
	if err != nil {
		t.Fatalf("find by empty title set: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected no matches for empty set, got %d", len(found))
	}
}

func TestTransactionSaveDeleteTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat, err := repo.Create(ctx, "Salary")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	saved, err := repo.Save(ctx, core.Transaction{
		Title:      "Paycheck",
		Value:      core.Money{Cents: 500000},
		Type:       core.Income,
		CategoryID: cat.ID,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, saved.ID)
	if err != nil || found == nil {
		t.Fatalf("find by id: %v (err=%v)", found, err)
	}
	if found.Title != "Paycheck" || found.Value.Cents != 500000 {
		t.Fatalf("unexpected transaction %+v", found)
	}

	if _, err := repo.Save(ctx, core.Transaction{
		Title:      "Rent",
		Value:      core.Money{Cents: 120000},
		Type:       core.Outcome,
		CategoryID: cat.ID,
	}); err != nil {
		t.Fatalf("save outcome: %v", err)
	}

	income, outcome, err := repo.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if income != 500000 || outcome != 120000 {
		t.Fatalf("totals = %d/%d, want 500000/120000", income, outcome)
	}

	if err := repo.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, saved.ID); err != core.ErrTransactionNotFound {
		t.Fatalf("second delete: got %v, want ErrTransactionNotFound", err)
	}
}

func TestSaveBulkIsAtomicPerBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat, err := repo.Create(ctx, "Misc")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	// A batch containing an invalid row persists nothing.
	_, err = repo.SaveBulk(ctx, []core.Transaction{
		{Title: "ok", Value: core.Money{Cents: 100}, Type: core.Income, CategoryID: cat.ID},
		{Title: "", Value: core.Money{Cents: 100}, Type: core.Income, CategoryID: cat.ID},
	})
	if err == nil {
		t.Fatal("expected validation error from bulk save")
	}
	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected rollback to leave 0 transactions, got %d", len(all))
	}

	saved, err := repo.SaveBulk(ctx, []core.Transaction{
		{Title: "one", Value: core.Money{Cents: 100}, Type: core.Income, CategoryID: cat.ID},
		{Title: "two", Value: core.Money{Cents: 200}, Type: core.Income, CategoryID: cat.ID},
	})
	if err != nil {
		t.Fatalf("save bulk: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved, got %d", len(saved))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gofinances.db")
	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	repo.Close()
}

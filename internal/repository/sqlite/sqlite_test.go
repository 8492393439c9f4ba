package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inventorycounter/internal/model"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file should exist")
	}
	return db
}

func TestLedger_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t))

	if err := repo.Save(ctx, "apple", 2); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, "box", 7); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ledger, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ledger["apple"] != 2 || ledger["box"] != 7 || len(ledger) != 2 {
		t.Errorf("Unexpected ledger %v", ledger)
	}
}

func TestLedger_SaveIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t))

	for i := 0; i < 3; i++ {
		if err := repo.Save(ctx, "apple", 5); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}
	if err := repo.Save(ctx, "apple", 4); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	items, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 4 {
		t.Errorf("Expected single apple=4 row, got %+v", items)
	}
}

func TestLedger_RejectsNegative(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	if err := repo.Save(context.Background(), "apple", -1); err == nil {
		t.Error("Expected error for negative quantity")
	}
}

func TestLedger_GetMissing(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	item, err := repo.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item != nil {
		t.Errorf("Expected nil for missing item, got %+v", item)
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "inventory.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := NewLedgerRepository(db).Save(ctx, "box", 3); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	db.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer reopened.Close()

	item, err := NewLedgerRepository(reopened).Get(ctx, "box")
	if err != nil || item == nil || item.Quantity != 3 {
		t.Errorf("Expected box=3 after reopen, got %+v (%v)", item, err)
	}
}

func TestLedger_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := repo.Save(ctx, "item_"+string(rune('a'+idx)), idx); err != nil {
				t.Errorf("Concurrent save %d failed: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	ledger, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ledger) != 10 {
		t.Errorf("Expected 10 items, got %d", len(ledger))
	}
}

func TestMovements_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewMovementRepository(setupTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	batch := []model.Movement{
		{SessionID: "s1", Item: "apple", Action: "check-in", Delta: 3, Quantity: 5, CreatedAt: now},
		{SessionID: "s1", Item: "box", Action: "check-in", Delta: 1, Quantity: 1, CreatedAt: now},
	}
	if err := repo.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	later := []model.Movement{
		{SessionID: "s2", Item: "apple", Action: "check-out", Delta: -2, Quantity: 3, CreatedAt: now.Add(time.Minute)},
	}
	if err := repo.InsertBatch(ctx, later); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	bySession, err := repo.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySession failed: %v", err)
	}
	if len(bySession) != 2 || bySession[0].Item != "apple" {
		t.Errorf("Unexpected session movements %+v", bySession)
	}

	recent, err := repo.GetRecent(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].SessionID != "s2" || recent[0].Delta != -2 {
		t.Errorf("Expected newest s2 movement, got %+v", recent)
	}
}

func TestMovements_EmptyBatch(t *testing.T) {
	repo := NewMovementRepository(setupTestDB(t))

	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
}

func TestEvidence_InsertAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewEvidenceRepository(setupTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	records := []*model.Evidence{
		{SessionID: "s1", Filename: "a.jpg", FilePath: "/ev/s1/a.jpg", FileSize: 10, Labels: []string{"box", "apple"}, CapturedAt: now},
		{SessionID: "s1", Filename: "b.jpg", FilePath: "/ev/s1/b.jpg", FileSize: 20, Labels: []string{"box"}, CapturedAt: now.Add(time.Second)},
		{SessionID: "s2", Filename: "c.jpg", FilePath: "/ev/s2/c.jpg", FileSize: 30, Labels: []string{"apple"}, CapturedAt: now.Add(2 * time.Second)},
	}
	for _, ev := range records {
		if _, err := repo.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if ev.ID == 0 {
			t.Fatal("Insert should set the ID")
		}
	}

	tests := []struct {
		name     string
		filter   model.EvidenceFilter
		expected []string
	}{
		{"all newest first", model.EvidenceFilter{}, []string{"c.jpg", "b.jpg", "a.jpg"}},
		{"by session", model.EvidenceFilter{SessionID: "s1"}, []string{"b.jpg", "a.jpg"}},
		{"by label", model.EvidenceFilter{Label: "apple"}, []string{"c.jpg", "a.jpg"}},
		{"limit and offset", model.EvidenceFilter{Limit: 1, Offset: 1}, []string{"b.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAll(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d records, got %d", len(tt.expected), len(got))
			}
			for i, name := range tt.expected {
				if got[i].Filename != name {
					t.Errorf("Record %d = %s, expected %s", i, got[i].Filename, name)
				}
			}
		})
	}

	ev, err := repo.GetByID(ctx, records[0].ID)
	if err != nil || ev == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(ev.Labels) != 2 || ev.Labels[0] != "box" || ev.Labels[1] != "apple" {
		t.Errorf("Expected labels in insertion order, got %v", ev.Labels)
	}

	missing, err := repo.GetByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("Expected nil for missing evidence, got %+v (%v)", missing, err)
	}
}

package state

import (
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestActiveView(t *testing.T) {
	db := testDB(t)

	if got := db.ActiveView(); got != "" {
		t.Errorf("expected empty active view initially, got %q", got)
	}

	if err := db.SetActiveView("tag:t1"); err != nil {
		t.Fatalf("SetActiveView: %v", err)
	}
	if got := db.ActiveView(); got != "tag:t1" {
		t.Errorf("expected tag:t1, got %q", got)
	}

	// Overwrite
	db.SetActiveView("all")
	if got := db.ActiveView(); got != "all" {
		t.Errorf("expected all, got %q", got)
	}
}

func TestScrollOffsets(t *testing.T) {
	db := testDB(t)

	if err := db.SetScrollOffset("all", 12); err != nil {
		t.Fatalf("SetScrollOffset: %v", err)
	}
	db.SetScrollOffset("tag:t1", 3)
	db.SetScrollOffset("all", 20) // upsert

	offs, err := db.ScrollOffsets()
	if err != nil {
		t.Fatalf("ScrollOffsets: %v", err)
	}
	if len(offs) != 2 {
		t.Fatalf("expected 2 offsets, got %d", len(offs))
	}
	if offs["all"] != 20 || offs["tag:t1"] != 3 {
		t.Errorf("unexpected offsets: %v", offs)
	}
}

func TestDropScroll(t *testing.T) {
	db := testDB(t)
	db.SetScrollOffset("tag:t1", 5)

	if err := db.DropScroll("tag:t1"); err != nil {
		t.Fatalf("DropScroll: %v", err)
	}
	offs, _ := db.ScrollOffsets()
	if len(offs) != 0 {
		t.Errorf("expected no offsets after drop, got %v", offs)
	}
}

func TestClear(t *testing.T) {
	db := testDB(t)
	db.SetActiveView("all")
	db.SetScrollOffset("all", 7)

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := db.ActiveView(); got != "" {
		t.Errorf("expected empty active view after clear, got %q", got)
	}
	offs, _ := db.ScrollOffsets()
	if len(offs) != 0 {
		t.Errorf("expected no offsets after clear, got %v", offs)
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	db.SetScrollOffset("all", 1)
	db.SetScrollOffset("tag:t1", 2)

	views, size, err := db.Stats(dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if views != 2 {
		t.Errorf("expected 2 views, got %d", views)
	}
	if size == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestOpenCreatesDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "deep", "state.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("opening db in nested dir: %v", err)
	}
	db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetActiveView("feed:f1")
	db.SetScrollOffset("feed:f1", 9)
	db.Close()

	db, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	if got := db.ActiveView(); got != "feed:f1" {
		t.Errorf("expected feed:f1 after reopen, got %q", got)
	}
	offs, _ := db.ScrollOffsets()
	if offs["feed:f1"] != 9 {
		t.Errorf("expected offset 9 after reopen, got %v", offs)
	}
}

package chronicle_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chronicled/chronicle"
)

func TestNewSQLiteAndInitialize(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := chronicle.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer db.Close()

	eng, err := chronicle.Initialize(ctx, db, "widgets", chronicle.Options{
		UniqueFields: []string{"sku"},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if eng == nil {
		t.Fatal("expected non-nil engine")
	}
}

func TestSaveThenAsOfRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := chronicle.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer db.Close()

	eng, err := chronicle.Initialize(ctx, db, "widgets", chronicle.Options{})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if _, err := eng.Save(ctx, "w1", chronicle.Payload{"name": "Sprocket"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	result, err := eng.AsOf(ctx, "w1", time.Now().UTC().Add(time.Hour), chronicle.AsOfOptions{})
	if err != nil {
		t.Fatalf("AsOf failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected found state")
	}
	if result.State["name"] != "Sprocket" {
		t.Errorf("state[name] = %v, want Sprocket", result.State["name"])
	}
}

package rehydrate

import (
	"context"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/chunkstore"
	"github.com/chronicled/chronicle/internal/chronicle/store/sqlite"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

func newTestChunks(t *testing.T) *chunkstore.Store {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	coll, err := db.Collection("docs_chronicle_chunks")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	return chunkstore.New(coll)
}

func TestRehydrateFoldsDeltasOntoFull(t *testing.T) {
	s := newTestChunks(t)
	ctx := context.Background()

	if _, err := s.AppendChunk(ctx, "d1", 1, "main", 1, types.CCFull, false, types.Payload{"a": 1, "b": "x"}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if _, err := s.AppendChunk(ctx, "d1", 1, "main", 2, types.CCDelta, false, types.Payload{"a": 2}); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if _, err := s.AppendChunk(ctx, "d1", 1, "main", 3, types.CCDelta, false, types.Payload{"b": nil, "c": true}); err != nil {
		t.Fatalf("append 3: %v", err)
	}

	res, err := Latest(ctx, s, "d1", 1, "main")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if res.State["a"] != float64(2) {
		t.Errorf("expected a=2, got %v", res.State["a"])
	}
	if _, ok := res.State["b"]; ok {
		t.Errorf("expected b removed by tombstone, got %v", res.State)
	}
	if res.State["c"] != true {
		t.Errorf("expected c=true, got %v", res.State["c"])
	}
	if res.Serial != 3 {
		t.Errorf("expected serial 3, got %d", res.Serial)
	}
}

func TestRehydrateBoundedBySerial(t *testing.T) {
	s := newTestChunks(t)
	ctx := context.Background()

	_, _ = s.AppendChunk(ctx, "d1", 1, "main", 1, types.CCFull, false, types.Payload{"a": 1})
	_, _ = s.AppendChunk(ctx, "d1", 1, "main", 2, types.CCDelta, false, types.Payload{"a": 2})

	bound := 1
	res, err := Rehydrate(ctx, s, "d1", 1, "main", chunkstore.Bound{SerialLE: &bound})
	if err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if res.State["a"] != float64(1) {
		t.Errorf("expected state bounded at serial 1 to show a=1, got %v", res.State["a"])
	}
}

func TestRehydrateEmptyReturnsNil(t *testing.T) {
	s := newTestChunks(t)
	res, err := Latest(context.Background(), s, "nonexistent", 1, "main")
	if err != nil {
		t.Fatalf("expected no error for empty scan, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for empty scan, got %v", res)
	}
}

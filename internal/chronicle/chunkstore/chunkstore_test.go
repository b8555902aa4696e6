package chunkstore

import (
	"context"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/store/sqlite"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	coll, err := db.Collection("widgets_chronicle_chunks")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	return New(coll)
}

func TestAppendChunkSetsLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendChunk(ctx, "d1", 1, "main", 1, types.CCFull, false, types.Payload{"a": 1}); err != nil {
		t.Fatalf("AppendChunk 1 failed: %v", err)
	}
	if _, err := s.AppendChunk(ctx, "d1", 1, "main", 2, types.CCDelta, false, types.Payload{"a": 2}); err != nil {
		t.Fatalf("AppendChunk 2 failed: %v", err)
	}

	latest, err := s.FindLatest(ctx, "d1", 1, "main")
	if err != nil || latest == nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if latest.Serial != 2 {
		t.Errorf("expected latest serial 2, got %d", latest.Serial)
	}

	first, err := s.FindBySerial(ctx, "d1", 1, "main", 1)
	if err != nil || first == nil {
		t.Fatalf("FindBySerial(1) failed: %v", err)
	}
	if first.IsLatest {
		t.Error("expected serial 1 to no longer be latest after serial 2 appended")
	}
}

func TestListOrderedBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ccType := types.CCDelta
		if i == 1 {
			ccType = types.CCFull
		}
		if _, err := s.AppendChunk(ctx, "d1", 1, "main", i, ccType, false, types.Payload{"n": i}); err != nil {
			t.Fatalf("AppendChunk %d failed: %v", i, err)
		}
	}

	bound := 2
	chunks, err := s.ListOrdered(ctx, "d1", 1, "main", Bound{SerialLE: &bound})
	if err != nil {
		t.Fatalf("ListOrdered failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks bounded at serial 2, got %d", len(chunks))
	}
	if chunks[0].Serial != 1 || chunks[1].Serial != 2 {
		t.Errorf("expected ascending serials [1,2], got [%d,%d]", chunks[0].Serial, chunks[1].Serial)
	}
}

func TestDeleteAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if _, err := s.AppendChunk(ctx, "d1", 1, "main", i, types.CCFull, false, types.Payload{}); err != nil {
			t.Fatalf("AppendChunk %d failed: %v", i, err)
		}
	}

	removed, err := s.DeleteAfter(ctx, "d1", 1, "main", 2)
	if err != nil {
		t.Fatalf("DeleteAfter failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	chunks, err := s.ListOrdered(ctx, "d1", 1, "main", Bound{})
	if err != nil {
		t.Fatalf("ListOrdered failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 remaining chunks, got %d", len(chunks))
	}
}

package keyindex

import (
	"context"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/store/sqlite"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	coll, err := db.Collection("users_chronicle_keys")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	idx := New(coll, []string{"email"})
	if err := idx.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	return idx
}

func TestValidateRejectsDuplicateLiveKey(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, "docA", "main", types.Payload{"email": "a@b.com"}, false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	err := idx.Validate(ctx, types.Payload{"email": "a@b.com"}, "main", "docB")
	if err == nil {
		t.Fatal("expected constraint violation for duplicate live email")
	}
}

func TestValidateAllowsExcludedDoc(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "docA", "main", types.Payload{"email": "a@b.com"}, false)

	if err := idx.Validate(ctx, types.Payload{"email": "a@b.com"}, "main", "docA"); err != nil {
		t.Errorf("expected self-update to be exempt from its own key, got %v", err)
	}
}

func TestValidateSkipsNilValue(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "docA", "main", types.Payload{}, false)

	if err := idx.Validate(ctx, types.Payload{}, "main", "docB"); err != nil {
		t.Errorf("expected sparse-null keys to be exempt, got %v", err)
	}
}

func TestSoftDeleteReleasesKeySlot(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_ = idx.Upsert(ctx, "docA", "main", types.Payload{"email": "a@b.com"}, false)
	if err := idx.MarkDeleted(ctx, "docA", "main"); err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}

	if err := idx.Validate(ctx, types.Payload{"email": "a@b.com"}, "main", "docB"); err != nil {
		t.Errorf("expected released key slot to admit docB, got %v", err)
	}
}

func TestDifferentBranchesDoNotCollide(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_ = idx.Upsert(ctx, "docA", "main", types.Payload{"email": "a@b.com"}, false)
	if err := idx.Validate(ctx, types.Payload{"email": "a@b.com"}, "feat", "docB"); err != nil {
		t.Errorf("expected different branches to hold independent uniqueness, got %v", err)
	}
}

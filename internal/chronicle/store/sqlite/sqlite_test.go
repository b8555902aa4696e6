package sqlite

import (
	"context"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/store"
)

// newTestStore mirrors the teacher's test_helpers.go pattern: a
// private temp-file database cleaned up automatically when the test
// completes.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return s
}

func TestInsertAndFindOne(t *testing.T) {
	s := newTestStore(t)
	col, err := s.Collection("widgets")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	ctx := context.Background()

	if err := col.InsertOne(ctx, store.Doc{"_id": "w1", "name": "bolt", "qty": 5}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	got, err := col.FindOne(ctx, store.Filter{"name": "bolt"}, store.FindOptions{})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got == nil || got["qty"].(float64) != 5 {
		t.Fatalf("expected qty=5, got %v", got)
	}
}

func TestUpdateOneUpsert(t *testing.T) {
	s := newTestStore(t)
	col, _ := s.Collection("widgets")
	ctx := context.Background()

	if err := col.UpdateOne(ctx, store.Filter{"_id": "w2"}, store.Update{"name": "nut"}, store.UpdateOptions{Upsert: true}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err := col.FindOne(ctx, store.Filter{"_id": "w2"}, store.FindOptions{})
	if err != nil || got == nil {
		t.Fatalf("expected upserted doc, err=%v got=%v", err, got)
	}
	if got["name"] != "nut" {
		t.Errorf("expected name=nut, got %v", got["name"])
	}
}

func TestDeleteManyAndCount(t *testing.T) {
	s := newTestStore(t)
	col, _ := s.Collection("widgets")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = col.InsertOne(ctx, store.Doc{"group": "a"})
	}
	_ = col.InsertOne(ctx, store.Doc{"group": "b"})

	n, err := col.CountDocuments(ctx, store.Filter{"group": "a"})
	if err != nil || n != 3 {
		t.Fatalf("expected 3 docs in group a, got %d, err=%v", n, err)
	}

	deleted, err := col.DeleteMany(ctx, store.Filter{"group": "a"})
	if err != nil || deleted != 3 {
		t.Fatalf("expected to delete 3, got %d, err=%v", deleted, err)
	}

	n, _ = col.CountDocuments(ctx, store.Filter{})
	if n != 1 {
		t.Errorf("expected 1 doc remaining, got %d", n)
	}
}

func TestCreateIndexUniquePartial(t *testing.T) {
	s := newTestStore(t)
	col, _ := s.Collection("keys")
	ctx := context.Background()

	err := col.CreateIndex(ctx, store.IndexSpec{
		Name:    "idx_key_email",
		Fields:  []store.SortField{{Field: "key_email"}, {Field: "branchId"}},
		Unique:  true,
		Partial: store.Filter{"isDeleted": false},
	})
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	if err := col.InsertOne(ctx, store.Doc{"docId": "d1", "branchId": "main", "isDeleted": false, "key_email": "a@b.com"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err = col.InsertOne(ctx, store.Doc{"docId": "d2", "branchId": "main", "isDeleted": false, "key_email": "a@b.com"})
	if err == nil {
		t.Fatal("expected unique constraint violation on duplicate key_email")
	}

	// A deleted row with the same key must not collide.
	if err := col.InsertOne(ctx, store.Doc{"docId": "d3", "branchId": "main", "isDeleted": true, "key_email": "a@b.com"}); err != nil {
		t.Fatalf("expected deleted row with same key to succeed, got %v", err)
	}
}

func TestFindSortAndLimit(t *testing.T) {
	s := newTestStore(t)
	col, _ := s.Collection("chunks")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_ = col.InsertOne(ctx, store.Doc{"serial": i})
	}

	docs, err := col.Find(ctx, store.Filter{}, store.FindOptions{
		Sort:  store.Sort{{Field: "serial", Ascending: false}},
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 || docs[0]["serial"].(float64) != 3 {
		t.Fatalf("expected highest serial first, got %v", docs)
	}
}

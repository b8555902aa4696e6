//go:build integration
// +build integration

package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/store"
)

// newTestStore dials the MongoDB instance named by CHRONICLE_MONGO_URI,
// skipping the test when it is unset. Unlike the SQLite backend this
// one needs a real server, so it only runs under -tags integration.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("CHRONICLE_MONGO_URI")
	if uri == "" {
		t.Skip("CHRONICLE_MONGO_URI not set")
	}
	s, err := Dial(context.Background(), uri, "chronicle_test")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return s
}

func TestMongoInsertAndFindOne(t *testing.T) {
	s := newTestStore(t)
	col, err := s.Collection("widgets")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	ctx := context.Background()

	if err := col.InsertOne(ctx, store.Doc{"_id": "w1", "name": "bolt", "qty": int32(5)}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	got, err := col.FindOne(ctx, store.Filter{"name": "bolt"}, store.FindOptions{})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a document")
	}
}

func TestMongoUniquePartialIndex(t *testing.T) {
	s := newTestStore(t)
	col, _ := s.Collection("keys")
	ctx := context.Background()

	err := col.CreateIndex(ctx, store.IndexSpec{
		Name:    "idx_key_email",
		Fields:  []store.SortField{{Field: "key_email"}},
		Unique:  true,
		Partial: store.Filter{"isDeleted": false},
	})
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	if err := col.InsertOne(ctx, store.Doc{"isDeleted": false, "key_email": "a@b.com"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := col.InsertOne(ctx, store.Doc{"isDeleted": false, "key_email": "a@b.com"}); err == nil {
		t.Fatal("expected unique constraint violation on duplicate key_email")
	}
}

package idgen

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestNewProducesValidSortableIDs(t *testing.T) {
	a := New()
	time.Sleep(time.Millisecond)
	b := New()

	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected generated IDs to validate, got %q, %q", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct IDs, got %q twice", a)
	}

	ids := []string{b, a}
	sort.Strings(ids)
	if ids[0] != a {
		t.Errorf("expected lexicographic order to match creation order: got %v", ids)
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	if Valid("not-a-uuid") {
		t.Error("expected Valid to reject a non-UUID string")
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	seen := map[string]bool{}
	first := New()
	seen[first] = true

	calls := 0
	id, err := Generate(context.Background(), func(_ context.Context, id string) (bool, error) {
		calls++
		if calls == 1 {
			return true, nil // force one retry
		}
		return seen[id], nil
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if seen[id] {
		t.Errorf("Generate returned a colliding ID: %s", id)
	}
	if calls < 2 {
		t.Errorf("expected at least 2 attempts, got %d", calls)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	_, err := Generate(context.Background(), func(_ context.Context, id string) (bool, error) {
		return true, nil // always taken
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

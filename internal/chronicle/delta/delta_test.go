package delta

import (
	"testing"
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/types"
)

func TestComputeBasic(t *testing.T) {
	original := types.Payload{"a": 1, "b": "x"}
	updated := types.Payload{"a": 2, "b": "x", "c": true}

	got := Compute(original, updated)
	if got["a"] != 2 {
		t.Errorf("expected a=2 in delta, got %v", got["a"])
	}
	if _, ok := got["b"]; ok {
		t.Errorf("unchanged key b should not appear in delta, got %v", got)
	}
	if got["c"] != true {
		t.Errorf("expected new key c=true in delta, got %v", got["c"])
	}
}

func TestComputeRemovedKeyIsTombstone(t *testing.T) {
	original := types.Payload{"a": 1, "gone": "bye"}
	updated := types.Payload{"a": 1}

	got := Compute(original, updated)
	v, ok := got["gone"]
	if !ok {
		t.Fatalf("expected tombstone entry for removed key, got %v", got)
	}
	if v != nil {
		t.Errorf("expected tombstone value nil, got %v", v)
	}
}

func TestComputeIgnoresReservedKeys(t *testing.T) {
	original := types.Payload{"docId": "abc", "a": 1}
	updated := types.Payload{"docId": "abc", "a": 1}

	got := Compute(original, updated)
	if !IsEmpty(got) {
		t.Errorf("expected empty delta, got %v", got)
	}
}

func TestComputeTimeEquality(t *testing.T) {
	now := time.Now()
	original := types.Payload{"at": now}
	updated := types.Payload{"at": now.Local()}

	got := Compute(original, updated)
	if !IsEmpty(got) {
		t.Errorf("expected equal time instants to produce empty delta, got %v", got)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	state := types.Payload{"a": 1, "b": "x"}
	next := types.Payload{"a": 2, "b": "x", "c": true}

	d := Compute(state, next)
	got := Apply(state, d)

	if len(got) != len(next) {
		t.Fatalf("Apply result %v does not match expected %v", got, next)
	}
	for k, v := range next {
		if got[k] != v {
			t.Errorf("key %s: got %v, want %v", k, got[k], v)
		}
	}
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	state := types.Payload{"a": 1}
	d := types.Payload{"a": 2, "b": 3}

	_ = Apply(state, d)
	if state["a"] != 1 {
		t.Errorf("Apply must not mutate its base argument, got %v", state)
	}
	if _, ok := state["b"]; ok {
		t.Errorf("Apply must not mutate its base argument, got %v", state)
	}
}

func TestApplyRemovesTombstonedKey(t *testing.T) {
	base := types.Payload{"a": 1, "b": 2}
	d := types.Payload{"b": nil}

	got := Apply(base, d)
	if _, ok := got["b"]; ok {
		t.Errorf("expected tombstoned key to be removed, got %v", got)
	}
	if got["a"] != 1 {
		t.Errorf("expected unrelated key preserved, got %v", got)
	}
}

func TestDeltaIdempotence(t *testing.T) {
	state := types.Payload{"a": 1, "b": []any{1, 2, 3}, "c": map[string]any{"x": 1}}

	d := Compute(state, state)
	if !IsEmpty(d) {
		t.Errorf("computeDelta(s, s) should be empty, got %v", d)
	}

	got := Apply(state, d)
	if len(got) != len(state) {
		t.Fatalf("applyDelta(s, computeDelta(s,s)) should equal s, got %v", got)
	}
}

func TestComputeArrayWholesaleReplace(t *testing.T) {
	original := types.Payload{"tags": []any{"a", "b"}}
	updated := types.Payload{"tags": []any{"a", "b", "c"}}

	got := Compute(original, updated)
	arr, ok := got["tags"].([]any)
	if !ok || len(arr) != 3 {
		t.Errorf("expected wholesale array replacement in delta, got %v", got["tags"])
	}
}

// Package delta implements the chronicle engine's field-level diff
// algebra (component C1): computing and applying forward patches
// between two flat attribute maps, with null-as-tombstone semantics.
package delta

import (
	"reflect"
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// reservedKeys are identifier/version fields the host never includes
// in a tracked payload; computeDelta ignores them defensively even
// though callers are expected to strip them before calling in.
var reservedKeys = map[string]bool{
	"_id":                 true,
	"docId":               true,
	"__chronicle_deleted": true,
}

// Compute returns the forward patch that transforms original into
// updated: changed or added keys map to their new value, removed keys
// map to nil (the tombstone).
func Compute(original, updated types.Payload) types.Payload {
	out := types.Payload{}
	for k, v := range updated {
		if reservedKeys[k] {
			continue
		}
		if ov, ok := original[k]; !ok || !deepEqual(ov, v) {
			out[k] = v
		}
	}
	for k := range original {
		if reservedKeys[k] {
			continue
		}
		if _, ok := updated[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// Apply folds delta onto base, returning a new payload. base is not
// mutated. A nil value in delta removes the key from the result.
func Apply(base, delta types.Payload) types.Payload {
	next := base.Clone()
	if next == nil {
		next = types.Payload{}
	}
	for k, v := range delta {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	return next
}

// IsEmpty reports whether delta carries no entries.
func IsEmpty(delta types.Payload) bool {
	return len(delta) == 0
}

// deepEqual compares two JSON-equivalent values: numbers by value
// after widening to float64, other scalars by ==,
// arrays by ordered element equality, maps by key-set equality plus
// recursive compare, and time.Time instants by equal absolute time
// rather than struct identity (monotonic reading, location, etc).
func deepEqual(a, b any) bool {
	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime || bIsTime {
		if aIsTime != bIsTime {
			return false
		}
		return at.Equal(bt)
	}

	av, aIsMap := a.(map[string]any)
	bv, bIsMap := b.(map[string]any)
	if aIsMap || bIsMap {
		if aIsMap != bIsMap || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	}

	aSlice, aIsSlice := toSlice(a)
	bSlice, bIsSlice := toSlice(b)
	if aIsSlice || bIsSlice {
		if aIsSlice != bIsSlice || len(aSlice) != len(bSlice) {
			return false
		}
		for i := range aSlice {
			if !deepEqual(aSlice[i], bSlice[i]) {
				return false
			}
		}
		return true
	}

	if an, aIsNum := toFloat(a); aIsNum {
		if bn, bIsNum := toFloat(b); bIsNum {
			return an == bn
		}
	}

	return a == b
}

// toFloat widens any Go numeric kind to float64 so that values which
// started as Go ints but round-tripped through a JSON store as
// float64 (or vice versa) still compare equal.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

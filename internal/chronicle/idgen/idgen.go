// Package idgen produces the opaque, sortable identifiers used for
// chunkId, branchId, and the row ids of the metadata and config
// collections (docId is supplied by the caller). It is grounded on the adaptive
// generate-validate-retry shape of a content-hash ID generator, but
// swaps the hash-derived short ID for a UUIDv7: time-ordered, 128-bit,
// and lexicographically sortable, which is a closer fit for the "96-bit
// (or similar) sortable value" the data model calls for.
package idgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MaxCollisionRetries bounds the number of regeneration attempts
// before Generate gives up. A true collision is astronomically unlikely
// for UUIDv7; the retry loop exists to keep the interface uniform
// with backends that validate uniqueness server-side and report it
// synchronously.
const MaxCollisionRetries = 5

// New returns a fresh sortable identifier.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the OS entropy source is broken;
		// fall back to a random v4 rather than panicking.
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s has the shape of an ID this package
// generates (a parseable UUID). Used to reject IDs from an untrusted
// or legacy caller before they are embedded in a storage filter.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Exists checks uniqueness of a candidate ID against the backing
// store. Collections pass a closure that reports whether an ID is
// already taken.
type Exists func(ctx context.Context, id string) (bool, error)

// Generate returns a new ID guaranteed (modulo the check function)
// not to already exist, retrying up to MaxCollisionRetries times.
func Generate(ctx context.Context, exists Exists) (string, error) {
	var lastID string
	for i := 0; i < MaxCollisionRetries; i++ {
		id := New()
		lastID = id
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("idgen: checking candidate %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("idgen: exhausted %d attempts, last candidate %s", MaxCollisionRetries, lastID)
}

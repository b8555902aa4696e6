// Package rehydrate implements component C3: reconstructing a
// document's state at a chosen (branch, coordinate) by scanning
// chunks and folding deltas onto the most recent FULL chunk.
package rehydrate

import (
	"context"
	"fmt"
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/chunkstore"
	"github.com/chronicled/chronicle/internal/chronicle/delta"
	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Result is the reconstructed state at the requested coordinate.
type Result struct {
	State          types.Payload
	Serial         int
	BranchID       string
	ChunkTimestamp time.Time
	IsDeleted      bool
}

// Bound narrows the scan to a serial or timestamp ceiling; both unset
// means "latest".
type Bound = chunkstore.Bound

// Rehydrate reconstructs state at (docId, epoch, branchId, bound).
// Returns (nil, nil) when no chunks exist in range — "not found" is
// not an error here, matching C3's own contract; callers translate
// that into whatever lifecycle error fits their operation.
func Rehydrate(ctx context.Context, chunks *chunkstore.Store, docID string, epoch int, branchID string, bound Bound) (*Result, error) {
	ordered, err := chunks.ListOrdered(ctx, docID, epoch, branchID, bound)
	if err != nil {
		return nil, fmt.Errorf("rehydrate: %w", err)
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	fullIdx := -1
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].CCType == types.CCFull {
			fullIdx = i
			break
		}
	}
	if fullIdx == -1 {
		return nil, fmt.Errorf("rehydrate: %w", errs.ErrCorrupt)
	}

	state := ordered[fullIdx].Payload.Clone()
	for i := fullIdx + 1; i < len(ordered); i++ {
		state = delta.Apply(state, ordered[i].Payload)
	}

	last := ordered[len(ordered)-1]
	return &Result{
		State:          state,
		Serial:         last.Serial,
		BranchID:       branchID,
		ChunkTimestamp: last.CTime,
		IsDeleted:      last.IsDeleted,
	}, nil
}

// Latest rehydrates the unbounded (latest) state of a branch.
func Latest(ctx context.Context, chunks *chunkstore.Store, docID string, epoch int, branchID string) (*Result, error) {
	return Rehydrate(ctx, chunks, docID, epoch, branchID, Bound{})
}

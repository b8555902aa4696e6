package engine

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/delta"
	"github.com/chronicled/chronicle/internal/chronicle/rehydrate"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Save is used for both creating a new docId and updating an existing
// one (§4.6.1). A payload that folds down to an empty delta against
// the previous state is a no-op: nothing is appended.
func (e *Engine) Save(ctx context.Context, docID string, payload types.Payload) (SaveResult, error) {
	if err := e.ready(); err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}

	var epoch int
	var branchID string
	var previous types.Payload
	var currentSerial int
	excludeDocID := ""

	if metadata == nil {
		epoch = 1
		root, err := e.branches.CreateRootBranch(ctx, docID, epoch, rootBranchName)
		if err != nil {
			return SaveResult{}, fmt.Errorf("engine: save: %w", err)
		}
		branchID = root.BranchID
		if err := e.branches.CreateMetadata(ctx, docID, epoch, branchID); err != nil {
			return SaveResult{}, fmt.Errorf("engine: save: %w", err)
		}
	} else {
		epoch = metadata.Epoch
		branchID = metadata.ActiveBranchID
		excludeDocID = docID
		result, err := rehydrate.Latest(ctx, e.chunks, docID, epoch, branchID)
		if err != nil {
			return SaveResult{}, fmt.Errorf("engine: save: %w", err)
		}
		if result != nil {
			previous = result.State
			currentSerial = result.Serial
		}
	}

	if err := e.keys.Validate(ctx, payload, branchID, excludeDocID); err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}

	shouldFull := currentSerial == 0 || (currentSerial+1)%e.cfg.FullChunkInterval == 0

	var chunkPayload types.Payload
	ccType := types.CCDelta
	if shouldFull {
		chunkPayload = payload
		ccType = types.CCFull
	} else {
		base := previous
		if base == nil {
			base = types.Payload{}
		}
		d := delta.Compute(base, payload)
		if delta.IsEmpty(d) {
			return SaveResult{DocID: docID, NoOp: true}, nil
		}
		chunkPayload = d
	}

	chunkID, err := e.chunks.AppendChunk(ctx, docID, epoch, branchID, currentSerial+1, ccType, false, chunkPayload)
	if err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}
	if err := e.keys.Upsert(ctx, docID, branchID, payload, false); err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}
	if err := e.branches.SetStatus(ctx, docID, epoch, types.StatusActive); err != nil {
		return SaveResult{}, fmt.Errorf("engine: save: %w", err)
	}

	e.recordEvent("save", docID, epoch, branchID, currentSerial+1, ccType.String())
	return SaveResult{DocID: docID, ChunkID: chunkID}, nil
}

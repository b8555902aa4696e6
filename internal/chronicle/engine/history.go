package engine

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/rehydrate"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Revert rewinds a single branch to targetSerial, deleting every
// chunk ahead of it and reparenting any child branch that diverged
// past that point (§4.6.5).
func (e *Engine) Revert(ctx context.Context, docID string, targetSerial int, opts RevertOptions) (RevertResult, error) {
	if err := e.ready(); err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	if metadata == nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", errs.ErrNotFound)
	}
	branchID := opts.BranchID
	if branchID == "" {
		branchID = metadata.ActiveBranchID
	}

	target, err := e.chunks.FindBySerial(ctx, docID, metadata.Epoch, branchID, targetSerial)
	if err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	if target == nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", errs.ErrSerialNotFound)
	}

	latest, err := e.chunks.FindLatest(ctx, docID, metadata.Epoch, branchID)
	if err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	if latest != nil && latest.Serial == targetSerial {
		result := RevertResult{Success: true, RevertedToSerial: targetSerial}
		if opts.Rehydrate {
			rehydrated, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, branchID, rehydrate.Bound{SerialLE: &targetSerial})
			if err != nil {
				return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
			}
			if rehydrated != nil {
				result.State = rehydrated.State
			}
		}
		return result, nil
	}

	removed, err := e.chunks.DeleteAfter(ctx, docID, metadata.Epoch, branchID, targetSerial)
	if err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	if err := e.chunks.SetLatestBySerial(ctx, docID, metadata.Epoch, branchID, targetSerial); err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}
	branchesUpdated, err := e.branches.ReparentChildren(ctx, docID, metadata.Epoch, branchID, targetSerial)
	if err != nil {
		return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
	}

	result := RevertResult{
		Success:          true,
		RevertedToSerial: targetSerial,
		ChunksRemoved:    removed,
		BranchesUpdated:  branchesUpdated,
	}
	if opts.Rehydrate {
		rehydrated, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, branchID, rehydrate.Bound{SerialLE: &targetSerial})
		if err != nil {
			return RevertResult{}, fmt.Errorf("engine: revert: %w", err)
		}
		if rehydrated != nil {
			result.State = rehydrated.State
		}
	}

	e.recordEvent("revert", docID, metadata.Epoch, branchID, targetSerial, "")
	return result, nil
}

// Squash collapses a document's entire lineage to a single FULL
// chunk on a fresh main branch at epoch 1, discarding history
// (§4.6.6). Requires Confirm unless DryRun previews the effect.
func (e *Engine) Squash(ctx context.Context, docID string, targetSerial int, opts SquashOptions) (SquashResult, error) {
	if err := e.ready(); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if !opts.Confirm && !opts.DryRun {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", errs.ErrConfirmationRequired)
	}

	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if metadata == nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", errs.ErrNotFound)
	}
	branchID := opts.BranchID
	if branchID == "" {
		branchID = metadata.ActiveBranchID
	}

	target, err := e.chunks.FindBySerial(ctx, docID, metadata.Epoch, branchID, targetSerial)
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if target == nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", errs.ErrSerialNotFound)
	}

	newState, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, branchID, rehydrate.Bound{SerialLE: &targetSerial})
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if newState == nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", errs.ErrCorrupt)
	}

	chunkCount, err := e.chunks.CountForDoc(ctx, docID, nil)
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	branchCount, err := e.branches.CountAll(ctx, docID, nil)
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}

	if opts.DryRun {
		return SquashResult{
			DryRun:   true,
			Chunks:   chunkCount,
			Branches: branchCount - 1,
			State:    newState.State,
		}, nil
	}

	if _, err := e.chunks.DeleteAll(ctx, docID, nil); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if _, err := e.branches.DeleteAll(ctx, docID, nil); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if _, err := e.branches.DeleteMetadata(ctx, docID, nil); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}

	newBranch, err := e.branches.CreateRootBranch(ctx, docID, 1, rootBranchName)
	if err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if _, err := e.chunks.AppendChunk(ctx, docID, 1, newBranch.BranchID, 1, types.CCFull, false, newState.State); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if err := e.branches.CreateMetadata(ctx, docID, 1, newBranch.BranchID); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}
	if err := e.branches.SetStatus(ctx, docID, 1, types.StatusActive); err != nil {
		return SquashResult{}, fmt.Errorf("engine: squash: %w", err)
	}

	e.recordEvent("squash", docID, 1, newBranch.BranchID, 1, "")
	return SquashResult{
		Chunks:      chunkCount,
		Branches:    branchCount,
		NewBranchID: newBranch.BranchID,
		State:       newState.State,
	}, nil
}

// Purge permanently removes a document's chunks, branches, metadata,
// and key rows (§4.6.7). Keys are cleared unconditionally even when
// epoch narrows the rest of the deletion, so a future Save on the
// same docId starts a clean lineage.
func (e *Engine) Purge(ctx context.Context, docID string, opts PurgeOptions) (PurgeResult, error) {
	if err := e.ready(); err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}
	if !opts.Confirm {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", errs.ErrConfirmationRequired)
	}

	epochsPurged, err := e.branches.CountMetadata(ctx, docID, opts.Epoch)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}
	if epochsPurged == 0 {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", errs.ErrNotFound)
	}

	chunksRemoved, err := e.chunks.DeleteAll(ctx, docID, opts.Epoch)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}
	branchesRemoved, err := e.branches.DeleteAll(ctx, docID, opts.Epoch)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}
	if _, err := e.branches.DeleteMetadata(ctx, docID, opts.Epoch); err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}
	if _, err := e.keys.DeleteAll(ctx, docID); err != nil {
		return PurgeResult{}, fmt.Errorf("engine: purge: %w", err)
	}

	e.recordEvent("purge", docID, 0, "", 0, "")
	return PurgeResult{
		DocID:           docID,
		EpochsPurged:    epochsPurged,
		ChunksRemoved:   chunksRemoved,
		BranchesRemoved: branchesRemoved,
	}, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/rehydrate"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// SoftDelete appends a tombstone-carrying FULL chunk over docId's
// latest lineage and releases its unique-key slot (§4.6.2). The
// deletion chunk carries the complete pre-deletion snapshot so
// Undelete and ListDeleted never need a second rehydration.
func (e *Engine) SoftDelete(ctx context.Context, docID string) (SoftDeleteResult, error) {
	if err := e.ready(); err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}
	if metadata == nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", errs.ErrNotFound)
	}
	branchID := metadata.ActiveBranchID

	latest, err := e.chunks.FindLatest(ctx, docID, metadata.Epoch, branchID)
	if err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}
	if latest == nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", errs.ErrNotFound)
	}
	if latest.IsDeleted {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", errs.ErrAlreadyDeleted)
	}

	result, err := rehydrate.Latest(ctx, e.chunks, docID, metadata.Epoch, branchID)
	if err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}
	if result == nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", errs.ErrCorrupt)
	}

	chunkID, err := e.chunks.AppendChunk(ctx, docID, metadata.Epoch, branchID, latest.Serial+1, types.CCFull, true, result.State)
	if err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}
	if err := e.keys.MarkDeleted(ctx, docID, branchID); err != nil {
		return SoftDeleteResult{}, fmt.Errorf("engine: softDelete: %w", err)
	}

	e.recordEvent("softDelete", docID, metadata.Epoch, branchID, latest.Serial+1, "")
	return SoftDeleteResult{ChunkID: chunkID, FinalState: result.State}, nil
}

// UndeleteOptions configures Undelete.
type UndeleteOptions struct {
	Epoch    *int
	BranchID string
}

// Undelete reverses a prior SoftDelete by appending a fresh live FULL
// chunk carrying the tombstoned snapshot (§4.6.3). May fail with a
// unique-constraint violation if another live document on the same
// branch has since taken the freed value.
func (e *Engine) Undelete(ctx context.Context, docID string, opts UndeleteOptions) (UndeleteResult, error) {
	if err := e.ready(); err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}
	var metadata *types.Metadata
	var err error
	if opts.Epoch != nil {
		metadata, err = e.branches.GetMetadata(ctx, docID, *opts.Epoch)
	} else {
		metadata, err = e.branches.GetMetadata(ctx, docID, -1)
	}
	if err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}
	if metadata == nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", errs.ErrNotFound)
	}

	branchID := opts.BranchID
	if branchID == "" {
		branchID = metadata.ActiveBranchID
	}

	latest, err := e.chunks.FindLatest(ctx, docID, metadata.Epoch, branchID)
	if err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}
	if latest == nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", errs.ErrNotFound)
	}
	if !latest.IsDeleted {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", errs.ErrNotDeleted)
	}

	restored := latest.Payload
	if err := e.keys.Validate(ctx, restored, branchID, docID); err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}

	if _, err := e.chunks.AppendChunk(ctx, docID, metadata.Epoch, branchID, latest.Serial+1, types.CCFull, false, restored); err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}
	if err := e.keys.ClearDeleted(ctx, docID, branchID, restored); err != nil {
		return UndeleteResult{}, fmt.Errorf("engine: undelete: %w", err)
	}

	e.recordEvent("undelete", docID, metadata.Epoch, branchID, latest.Serial+1, "")
	return UndeleteResult{DocID: docID, Epoch: metadata.Epoch, RestoredState: restored}, nil
}

// ListDeleted scans every soft-deleted lineage of this collection
// (across all docIds), most recently deleted first (§4.6.8).
func (e *Engine) ListDeleted(ctx context.Context, filter ListDeletedFilter) ([]DeletedEntry, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("engine: listDeleted: %w", err)
	}
	chunks, err := e.chunks.ListDeleted(ctx, filter.DeletedAfter, filter.DeletedBefore)
	if err != nil {
		return nil, fmt.Errorf("engine: listDeleted: %w", err)
	}
	out := make([]DeletedEntry, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, DeletedEntry{
			DocID:      c.DocID,
			Epoch:      c.Epoch,
			DeletedAt:  c.CTime,
			FinalState: c.Payload,
		})
	}
	return out, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/rehydrate"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// CreateBranch diverges a new timeline off the active branch at
// fromSerial (default: the active branch's latest serial), seeding it
// with its own serial-1 FULL chunk carrying the parent's state at
// that point (§4.5).
func (e *Engine) CreateBranch(ctx context.Context, docID, name string, opts CreateBranchOptions) (*types.Branch, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("engine: createBranch: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return nil, fmt.Errorf("engine: createBranch: %w", err)
	}
	if metadata == nil {
		return nil, fmt.Errorf("engine: createBranch: %w", errs.ErrNotFound)
	}
	parentBranch := metadata.ActiveBranchID

	fromSerial := 0
	if opts.FromSerial != nil {
		chunk, err := e.chunks.FindBySerial(ctx, docID, metadata.Epoch, parentBranch, *opts.FromSerial)
		if err != nil {
			return nil, fmt.Errorf("engine: createBranch: %w", err)
		}
		if chunk == nil {
			return nil, fmt.Errorf("engine: createBranch: %w", errs.ErrSerialNotFound)
		}
		fromSerial = *opts.FromSerial
	} else {
		latest, err := e.chunks.FindLatest(ctx, docID, metadata.Epoch, parentBranch)
		if err != nil {
			return nil, fmt.Errorf("engine: createBranch: %w", err)
		}
		if latest == nil {
			return nil, fmt.Errorf("engine: createBranch: %w", errs.ErrNoChunks)
		}
		fromSerial = latest.Serial
	}

	state, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, parentBranch, rehydrate.Bound{SerialLE: &fromSerial})
	if err != nil {
		return nil, fmt.Errorf("engine: createBranch: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("engine: createBranch: %w", errs.ErrCorrupt)
	}

	newBranch, err := e.branches.CreateBranch(ctx, docID, metadata.Epoch, name, parentBranch, fromSerial)
	if err != nil {
		return nil, fmt.Errorf("engine: createBranch: %w", err)
	}
	if _, err := e.chunks.AppendChunk(ctx, docID, metadata.Epoch, newBranch.BranchID, 1, types.CCFull, state.IsDeleted, state.State); err != nil {
		return nil, fmt.Errorf("engine: createBranch: %w", err)
	}

	if opts.Activate {
		if err := e.branches.SetActiveBranch(ctx, docID, metadata.Epoch, newBranch.BranchID); err != nil {
			return nil, fmt.Errorf("engine: createBranch: %w", err)
		}
	}

	e.recordEvent("createBranch", docID, metadata.Epoch, newBranch.BranchID, 1, name)
	return newBranch, nil
}

// SwitchBranch points (docId, epoch)'s active branch at branchID,
// failing if it does not belong to the document.
func (e *Engine) SwitchBranch(ctx context.Context, docID, branchID string) error {
	if err := e.ready(); err != nil {
		return fmt.Errorf("engine: switchBranch: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return fmt.Errorf("engine: switchBranch: %w", err)
	}
	if metadata == nil {
		return fmt.Errorf("engine: switchBranch: %w", errs.ErrNotFound)
	}
	b, err := e.branches.Get(ctx, docID, metadata.Epoch, branchID)
	if err != nil {
		return fmt.Errorf("engine: switchBranch: %w", err)
	}
	if b == nil {
		return fmt.Errorf("engine: switchBranch: %w", errs.ErrBranchNotFound)
	}
	if err := e.branches.SetActiveBranch(ctx, docID, metadata.Epoch, branchID); err != nil {
		return fmt.Errorf("engine: switchBranch: %w", err)
	}
	e.recordEvent("switchBranch", docID, metadata.Epoch, branchID, 0, "")
	return nil
}

// ListBranches returns every branch of docId's current epoch, or nil
// if the docId has no lineage.
func (e *Engine) ListBranches(ctx context.Context, docID string) ([]*types.Branch, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("engine: listBranches: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return nil, fmt.Errorf("engine: listBranches: %w", err)
	}
	if metadata == nil {
		return nil, nil
	}
	branches, err := e.branches.List(ctx, docID, metadata.Epoch)
	if err != nil {
		return nil, fmt.Errorf("engine: listBranches: %w", err)
	}
	return branches, nil
}

// GetActiveBranch returns the currently active branch of docId's
// current epoch, or nil if the docId has no lineage.
func (e *Engine) GetActiveBranch(ctx context.Context, docID string) (*types.Branch, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("engine: getActiveBranch: %w", err)
	}
	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return nil, fmt.Errorf("engine: getActiveBranch: %w", err)
	}
	if metadata == nil {
		return nil, nil
	}
	b, err := e.branches.Get(ctx, docID, metadata.Epoch, metadata.ActiveBranchID)
	if err != nil {
		return nil, fmt.Errorf("engine: getActiveBranch: %w", err)
	}
	return b, nil
}

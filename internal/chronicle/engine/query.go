package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/rehydrate"
)

// AsOf reconstructs docId's state at or before instant t (§4.6.4). A
// docId with no lineage, or no chunk at or before t on every
// candidate branch, reports Found=false rather than an error.
func (e *Engine) AsOf(ctx context.Context, docID string, t time.Time, opts AsOfOptions) (AsOfResult, error) {
	if err := e.ready(); err != nil {
		return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
	}
	if opts.BranchID != "" && opts.SearchAllBranches {
		return AsOfResult{}, fmt.Errorf("engine: asOf: %w", errs.ErrMutuallyExclusiveOptions)
	}

	metadata, err := e.branches.GetMetadata(ctx, docID, -1)
	if err != nil {
		return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
	}
	if metadata == nil {
		return AsOfResult{Found: false}, nil
	}

	bound := rehydrate.Bound{TimeLE: &t}

	if !opts.SearchAllBranches {
		branchID := opts.BranchID
		if branchID == "" {
			branchID = metadata.ActiveBranchID
		}
		result, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, branchID, bound)
		if err != nil {
			return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
		}
		if result == nil {
			return AsOfResult{Found: false}, nil
		}
		return AsOfResult{
			Found:          true,
			State:          result.State,
			Serial:         result.Serial,
			BranchID:       result.BranchID,
			ChunkTimestamp: result.ChunkTimestamp,
		}, nil
	}

	candidates, err := e.branches.List(ctx, docID, metadata.Epoch)
	if err != nil {
		return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
	}

	bestBranch := ""
	var bestTime time.Time
	for _, b := range candidates {
		ordered, err := e.chunks.ListOrdered(ctx, docID, metadata.Epoch, b.BranchID, bound)
		if err != nil {
			return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
		}
		if len(ordered) == 0 {
			continue
		}
		candidateTime := ordered[len(ordered)-1].CTime
		if bestBranch == "" || candidateTime.After(bestTime) ||
			(candidateTime.Equal(bestTime) && b.BranchID > bestBranch) {
			bestBranch = b.BranchID
			bestTime = candidateTime
		}
	}
	if bestBranch == "" {
		return AsOfResult{Found: false}, nil
	}

	result, err := rehydrate.Rehydrate(ctx, e.chunks, docID, metadata.Epoch, bestBranch, bound)
	if err != nil {
		return AsOfResult{}, fmt.Errorf("engine: asOf: %w", err)
	}
	if result == nil {
		return AsOfResult{Found: false}, nil
	}
	return AsOfResult{
		Found:          true,
		State:          result.State,
		Serial:         result.Serial,
		BranchID:       result.BranchID,
		ChunkTimestamp: result.ChunkTimestamp,
	}, nil
}

package engine

import (
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// SaveResult is returned by Save. NoOp is true when the computed
// delta against the previous state was empty, in which case ChunkID
// is empty and nothing was appended.
type SaveResult struct {
	DocID   string
	ChunkID string
	NoOp    bool
}

// SoftDeleteResult is returned by SoftDelete.
type SoftDeleteResult struct {
	ChunkID    string
	FinalState types.Payload
}

// UndeleteResult is returned by Undelete.
type UndeleteResult struct {
	DocID         string
	Epoch         int
	RestoredState types.Payload
}

// AsOfOptions configures AsOf. BranchID and SearchAllBranches are
// mutually exclusive.
type AsOfOptions struct {
	BranchID          string
	SearchAllBranches bool
}

// AsOfResult is returned by AsOf. Found is false when no chunk exists
// at or before the requested instant.
type AsOfResult struct {
	Found          bool
	State          types.Payload
	Serial         int
	BranchID       string
	ChunkTimestamp time.Time
}

// RevertOptions configures Revert.
type RevertOptions struct {
	BranchID  string
	Rehydrate bool
}

// RevertResult is returned by Revert.
type RevertResult struct {
	Success          bool
	RevertedToSerial int
	ChunksRemoved    int
	BranchesUpdated  int
	State            types.Payload
}

// SquashOptions configures Squash.
type SquashOptions struct {
	BranchID string
	Confirm  bool
	DryRun   bool
}

// SquashResult is returned by Squash. When DryRun is set, Chunks and
// Branches report what *would* be deleted and NewBranchID is empty;
// otherwise they report what was actually deleted and NewBranchID
// names the fresh main branch.
type SquashResult struct {
	DryRun      bool
	Chunks      int
	Branches    int
	NewBranchID string
	State       types.Payload
}

// PurgeOptions configures Purge.
type PurgeOptions struct {
	Confirm bool
	Epoch   *int
}

// PurgeResult is returned by Purge.
type PurgeResult struct {
	DocID           string
	EpochsPurged    int
	ChunksRemoved   int
	BranchesRemoved int
}

// ListDeletedFilter narrows ListDeleted to a cTime range.
type ListDeletedFilter struct {
	DeletedAfter  *time.Time
	DeletedBefore *time.Time
}

// DeletedEntry is one row of ListDeleted's result.
type DeletedEntry struct {
	DocID      string
	Epoch      int
	DeletedAt  time.Time
	FinalState types.Payload
}

// CreateBranchOptions configures CreateBranch.
type CreateBranchOptions struct {
	FromSerial *int
	Activate   bool
}

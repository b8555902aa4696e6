// Package types holds the data model shared across every chronicle
// subsystem: chunks, branches, metadata, key rows, and per-collection
// configuration.
package types

import "time"

// CCType distinguishes a full snapshot from a forward delta.
type CCType int

const (
	// CCFull carries the complete document state at a serial.
	CCFull CCType = 1
	// CCDelta carries only the fields that changed since the prior chunk.
	CCDelta CCType = 2
)

func (t CCType) String() string {
	switch t {
	case CCFull:
		return "FULL"
	case CCDelta:
		return "DELTA"
	default:
		return "UNKNOWN"
	}
}

// MetadataStatus tracks a (docId, epoch) lineage through its lifecycle.
type MetadataStatus string

const (
	StatusPending  MetadataStatus = "pending"
	StatusActive   MetadataStatus = "active"
	StatusOrphaned MetadataStatus = "orphaned"
)

// A DELTA chunk marks a removed key with a Go nil value, serialized
// as JSON null on the wire per the data model's "conventionally null"
// tombstone convention. Tombstones never survive into a rehydrated
// state.

// Payload is a flat attribute map. Values are JSON-equivalent scalars,
// arrays, nested maps, or time.Time instants.
type Payload map[string]any

// Clone returns a shallow copy of the payload. Nested maps/slices are
// shared, matching the delta algebra's "replace wholesale" semantics
// for arrays.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Chunk is an immutable, append-only record of one version (FULL) or
// one diff (DELTA) of a document on a specific (docId, epoch, branchId)
// lineage.
type Chunk struct {
	ChunkID   string
	DocID     string
	Epoch     int
	BranchID  string
	Serial    int
	CCType    CCType
	IsDeleted bool
	IsLatest  bool
	CTime     time.Time
	Payload   Payload
}

// Branch is a named, parented timeline of a single document. Other
// branches of the same document are independent lineages.
type Branch struct {
	BranchID       string
	DocID          string
	Epoch          int
	ParentBranchID string // empty iff root branch of the epoch
	ParentSerial   int    // 0 iff root branch of the epoch
	Name           string
	CreatedAt      time.Time
}

// IsRoot reports whether b is the root ("main") branch of its epoch.
func (b Branch) IsRoot() bool {
	return b.ParentBranchID == ""
}

// Metadata is the single row tracking the live lineage for a
// (docId, epoch) pair.
type Metadata struct {
	DocID          string
	Epoch          int
	ActiveBranchID string
	Status         MetadataStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KeyRow is the per (docId, branchId) record carrying the live values
// of declared unique fields, subject to per-branch partial-unique
// indexes. Keys maps field name -> current value; a field absent from
// Keys (or with a nil value) is sparse-null and exempt from
// uniqueness.
type KeyRow struct {
	DocID     string
	BranchID  string
	IsDeleted bool
	Keys      map[string]any
}

// Config is the per-collection configuration row.
type Config struct {
	CollectionName    string
	FullChunkInterval int
	PluginVersion     string
	IndexedFields     []string
	UniqueFields      []string
}

// DefaultFullChunkInterval matches the cadence used when a collection
// is initialized without an explicit override.
const DefaultFullChunkInterval = 20

// Package chronicle provides a minimal public API over the chunk
// store, rehydrator, and operation engine that give every collection
// a complete document history: save, soft-delete/undelete, point-in-time
// reads, revert, squash, and branching.
//
// Most callers only need NewSQLite (or NewMongo) plus Initialize to
// obtain an *Engine bound to one logical collection.
package chronicle

import (
	"context"

	"github.com/chronicled/chronicle/internal/chronicle/audit"
	"github.com/chronicled/chronicle/internal/chronicle/engine"
	"github.com/chronicled/chronicle/internal/chronicle/store"
	"github.com/chronicled/chronicle/internal/chronicle/store/mongo"
	"github.com/chronicled/chronicle/internal/chronicle/store/sqlite"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Database is the backing store handle an Engine is initialized
// against. *sqlite.Store and *mongo.Store both satisfy it.
type Database = store.Database

// Engine is the chronicle operation surface bound to one logical
// collection: save, softDelete, undelete, asOf, revert, squash,
// purge, listDeleted, and the branch operations.
type Engine = engine.Engine

// Options configures Initialize.
type Options = engine.Options

// AuditTrail is a rotating JSONL diagnostic log consumed via
// Options.AuditTrail. A nil trail disables auditing.
type AuditTrail = audit.Trail

// NewSQLite opens (creating if necessary) a pure-Go SQLite database
// at path, with no cgo dependency.
func NewSQLite(ctx context.Context, path string) (Database, error) {
	return sqlite.New(ctx, path)
}

// NewMongo connects to the MongoDB database named dbName at uri.
func NewMongo(ctx context.Context, uri, dbName string) (Database, error) {
	return mongo.Dial(ctx, uri, dbName)
}

// NewAuditTrail opens a rotating JSONL audit log at path. An empty
// path disables the trail.
func NewAuditTrail(path string) *AuditTrail {
	return audit.New(path)
}

// Initialize ensures the config, metadata, branch, chunk, and key
// collections (plus their indexes) exist for collectionName, and
// returns an Engine bound to them.
func Initialize(ctx context.Context, db Database, collectionName string, opts Options) (*Engine, error) {
	return engine.Initialize(ctx, db, collectionName, opts)
}

// Payload is a flat attribute map: the user-visible document state
// tracked across the chronicle, stripped of identifier/version fields.
type Payload = types.Payload

// Branch is a named, parented timeline of a single document.
type Branch = types.Branch

// Result and option types re-exported for callers that want to name
// them explicitly rather than rely on inference.
type (
	SaveResult          = engine.SaveResult
	SoftDeleteResult    = engine.SoftDeleteResult
	UndeleteOptions     = engine.UndeleteOptions
	UndeleteResult      = engine.UndeleteResult
	AsOfOptions         = engine.AsOfOptions
	AsOfResult          = engine.AsOfResult
	RevertOptions       = engine.RevertOptions
	RevertResult        = engine.RevertResult
	SquashOptions       = engine.SquashOptions
	SquashResult        = engine.SquashResult
	PurgeOptions        = engine.PurgeOptions
	PurgeResult         = engine.PurgeResult
	ListDeletedFilter   = engine.ListDeletedFilter
	DeletedEntry        = engine.DeletedEntry
	CreateBranchOptions = engine.CreateBranchOptions
)

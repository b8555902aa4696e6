// Package store defines the abstract Collection API the chronicle
// engine consumes from a backing document store: insert/update/delete/
// find/count/createIndex, modeled directly on MongoDB/Mongoose
// semantics since that is the origin shape this engine was designed
// against. internal/chronicle/store/sqlite and
// internal/chronicle/store/mongo are the two concrete adapters.
package store

import "context"

// Doc is a generic document: an attribute map plus whatever identity
// fields a collection's rows carry (docId, epoch, branchId, serial,
// isLatest, ...). Both backends store and return this shape so the
// rest of the engine never branches on which store is in play.
type Doc map[string]any

// Filter is a flat equality/comparison filter, e.g.
// {"docId": "x", "isLatest": true} or {"serial": Gt{Value: 3}}. Backends
// translate it to a parameterized WHERE clause or a bson.M.
type Filter map[string]any

// Update describes a partial field update, analogous to Mongo's
// {$set: {...}}.
type Update map[string]any

// Gt, Lte etc. are comparison wrappers a Filter value may hold instead
// of a bare equality value.
type Gt struct{ Value any }
type Gte struct{ Value any }
type Lt struct{ Value any }
type Lte struct{ Value any }
type Ne struct{ Value any }

// Sort is an ordered list of (field, ascending) pairs.
type Sort []SortField

type SortField struct {
	Field     string
	Ascending bool
}

// FindOptions configures a find/findOne call.
type FindOptions struct {
	Sort  Sort
	Limit int
}

// UpdateOptions configures updateOne/updateMany.
type UpdateOptions struct {
	Upsert bool
}

// IndexSpec describes one index to create. Unique+Partial together
// express the per-branch partial-unique indexes C2/C4 require
// (e.g. unique on (key_email, branchId) where isDeleted=false).
type IndexSpec struct {
	Name    string
	Fields  []SortField
	Unique  bool
	Partial Filter // nil means no partial filter expression
}

// Collection is the abstract per-logical-collection handle the
// chronicle engine operates against. Every method is scoped to one
// backing physical table/collection; the engine never issues
// cross-collection transactions (a declared non-goal).
type Collection interface {
	InsertOne(ctx context.Context, doc Doc) error
	UpdateOne(ctx context.Context, filter Filter, update Update, opts UpdateOptions) error
	UpdateMany(ctx context.Context, filter Filter, update Update) (matched int, err error)
	DeleteOne(ctx context.Context, filter Filter) error
	DeleteMany(ctx context.Context, filter Filter) (deleted int, err error)
	FindOne(ctx context.Context, filter Filter, opts FindOptions) (Doc, error) // nil, nil on no match
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Doc, error)
	CountDocuments(ctx context.Context, filter Filter) (int, error)
	CreateIndex(ctx context.Context, spec IndexSpec) error
}

// Database is a handle a backend exposes for obtaining the named
// collections a chronicle collection initialization needs: chunks,
// branches, metadata, keys, plus the shared config collection.
type Database interface {
	Collection(name string) (Collection, error)
	Close() error
}

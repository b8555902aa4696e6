// Package keyindex implements component C4: per-(docId, branchId)
// tracking of declared unique field values, enforcing uniqueness in a
// history-aware, per-branch way.
package keyindex

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/store"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// keyColumn is the persisted column name for a declared unique field,
// per the data model's "dynamic key_{field} columns" note.
func keyColumn(field string) string { return "key_" + field }

// Index wraps the keys collection of one chronicle-backed collection.
type Index struct {
	coll         store.Collection
	uniqueFields []string
}

// New wraps an already-initialized keys collection, scoped to the
// collection's declared unique fields.
func New(coll store.Collection, uniqueFields []string) *Index {
	return &Index{coll: coll, uniqueFields: uniqueFields}
}

// EnsureIndexes creates the compound unique (docId, branchId) index
// and, per declared unique field f, the partial unique index on
// (key_f, branchId) filtered by isDeleted=false.
func (idx *Index) EnsureIndexes(ctx context.Context) error {
	if err := idx.coll.CreateIndex(ctx, store.IndexSpec{
		Name:   "idx_keys_doc_branch",
		Fields: []store.SortField{{Field: "docId"}, {Field: "branchId"}},
		Unique: true,
	}); err != nil {
		return fmt.Errorf("keyindex: ensure indexes: %w", err)
	}
	for _, f := range idx.uniqueFields {
		spec := store.IndexSpec{
			Name:    "idx_keys_unique_" + f,
			Fields:  []store.SortField{{Field: keyColumn(f)}, {Field: "branchId"}},
			Unique:  true,
			Partial: store.Filter{"isDeleted": false},
		}
		if err := idx.coll.CreateIndex(ctx, spec); err != nil {
			return fmt.Errorf("keyindex: ensure indexes: %w", err)
		}
	}
	return nil
}

// Validate checks payload against every declared unique field,
// returning *errs.ConstraintError for the first field already held by
// a live document on branchID other than excludeDocID. A nil/absent
// value for a field is exempt (sparse uniqueness).
func (idx *Index) Validate(ctx context.Context, payload types.Payload, branchID, excludeDocID string) error {
	for _, f := range idx.uniqueFields {
		v, ok := payload[f]
		if !ok || v == nil {
			continue
		}
		filter := store.Filter{
			keyColumn(f): v,
			"branchId":   branchID,
			"isDeleted":  false,
		}
		docs, err := idx.coll.Find(ctx, filter, store.FindOptions{})
		if err != nil {
			return fmt.Errorf("keyindex: validate: %w", err)
		}
		for _, d := range docs {
			if docIDOf(d) != excludeDocID {
				return errs.NewConstraintError(f, v)
			}
		}
	}
	return nil
}

func docIDOf(d store.Doc) string {
	s, _ := d["docId"].(string)
	return s
}

// Upsert writes the current values of every declared unique field
// for (docId, branchId), replacing any prior row.
func (idx *Index) Upsert(ctx context.Context, docID, branchID string, payload types.Payload, isDeleted bool) error {
	update := store.Update{
		"docId":     docID,
		"branchId":  branchID,
		"isDeleted": isDeleted,
	}
	for _, f := range idx.uniqueFields {
		if v, ok := payload[f]; ok {
			update[keyColumn(f)] = v
		} else {
			update[keyColumn(f)] = nil
		}
	}
	err := idx.coll.UpdateOne(ctx, store.Filter{"docId": docID, "branchId": branchID}, update, store.UpdateOptions{Upsert: true})
	if err != nil {
		return fmt.Errorf("keyindex: upsert: %w", err)
	}
	return nil
}

// MarkDeleted releases the unique slot for (docId, branchId) without
// discarding the row, so undelete can restore it.
func (idx *Index) MarkDeleted(ctx context.Context, docID, branchID string) error {
	err := idx.coll.UpdateOne(ctx, store.Filter{"docId": docID, "branchId": branchID}, store.Update{"isDeleted": true}, store.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("keyindex: markDeleted: %w", err)
	}
	return nil
}

// ClearDeleted reinstates the row and refreshes its key values.
func (idx *Index) ClearDeleted(ctx context.Context, docID, branchID string, payload types.Payload) error {
	return idx.Upsert(ctx, docID, branchID, payload, false)
}

// DeleteAll removes every key row for docID, unconditionally across
// all epochs and branches: purge clears the unique slot entirely so a
// reused docId starts a fresh lineage with no stale key residue.
func (idx *Index) DeleteAll(ctx context.Context, docID string) (int, error) {
	n, err := idx.coll.DeleteMany(ctx, store.Filter{"docId": docID})
	if err != nil {
		return 0, fmt.Errorf("keyindex: deleteAll: %w", err)
	}
	return n, nil
}

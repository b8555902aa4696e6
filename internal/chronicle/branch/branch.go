// Package branch implements component C5: creating, switching,
// listing, and activating branches, plus the (docId, epoch) metadata
// row that tracks the currently active branch and lineage status.
package branch

import (
	"context"
	"fmt"
	"time"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/idgen"
	"github.com/chronicled/chronicle/internal/chronicle/store"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Manager wraps the branches and metadata collections of one
// chronicle-backed collection.
type Manager struct {
	branches store.Collection
	metadata store.Collection
}

// New wraps already-initialized branches and metadata collections.
func New(branches, metadata store.Collection) *Manager {
	return &Manager{branches: branches, metadata: metadata}
}

// EnsureIndexes creates the structural indexes both collections need.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	if err := m.branches.CreateIndex(ctx, store.IndexSpec{
		Name:   "idx_branches_doc_epoch",
		Fields: []store.SortField{{Field: "docId"}, {Field: "epoch"}},
	}); err != nil {
		return fmt.Errorf("branch: ensure indexes: %w", err)
	}
	if err := m.metadata.CreateIndex(ctx, store.IndexSpec{
		Name:   "idx_metadata_doc_epoch",
		Fields: []store.SortField{{Field: "docId"}, {Field: "epoch"}},
		Unique: true,
	}); err != nil {
		return fmt.Errorf("branch: ensure indexes: %w", err)
	}
	return nil
}

// GetMetadata returns the metadata row for (docId, epoch), or nil if
// none exists. epoch < 0 resolves to the highest epoch on record.
func (m *Manager) GetMetadata(ctx context.Context, docID string, epoch int) (*types.Metadata, error) {
	filter := store.Filter{"docId": docID}
	sort := store.Sort(nil)
	if epoch >= 0 {
		filter["epoch"] = epoch
	} else {
		sort = store.Sort{{Field: "epoch", Ascending: false}}
	}
	doc, err := m.metadata.FindOne(ctx, filter, store.FindOptions{Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("branch: getMetadata: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return docToMetadata(doc)
}

// CreateMetadata inserts the initial pending metadata row for a new
// (docId, epoch) lineage rooted at mainBranchID.
func (m *Manager) CreateMetadata(ctx context.Context, docID string, epoch int, mainBranchID string) error {
	now := time.Now().UTC()
	err := m.metadata.InsertOne(ctx, store.Doc{
		"_id":            idgen.New(),
		"docId":          docID,
		"epoch":          epoch,
		"activeBranchId": mainBranchID,
		"status":         string(types.StatusPending),
		"createdAt":      now,
		"updatedAt":      now,
	})
	if err != nil {
		return fmt.Errorf("branch: createMetadata: %w", err)
	}
	return nil
}

// SetStatus updates metadataStatus for (docId, epoch).
func (m *Manager) SetStatus(ctx context.Context, docID string, epoch int, status types.MetadataStatus) error {
	err := m.metadata.UpdateOne(ctx, store.Filter{"docId": docID, "epoch": epoch},
		store.Update{"status": string(status), "updatedAt": time.Now().UTC()}, store.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("branch: setStatus: %w", err)
	}
	return nil
}

// SetActiveBranch updates activeBranchId for (docId, epoch).
func (m *Manager) SetActiveBranch(ctx context.Context, docID string, epoch int, branchID string) error {
	err := m.metadata.UpdateOne(ctx, store.Filter{"docId": docID, "epoch": epoch},
		store.Update{"activeBranchId": branchID, "updatedAt": time.Now().UTC()}, store.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("branch: setActiveBranch: %w", err)
	}
	return nil
}

// DeleteMetadata removes metadata rows for docId, optionally
// restricted to one epoch. Used by purge.
func (m *Manager) DeleteMetadata(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	n, err := m.metadata.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("branch: deleteMetadata: %w", err)
	}
	return n, nil
}

// CreateRootBranch inserts the unparented "main" branch of a fresh
// epoch.
func (m *Manager) CreateRootBranch(ctx context.Context, docID string, epoch int, name string) (*types.Branch, error) {
	b := &types.Branch{
		BranchID:  idgen.New(),
		DocID:     docID,
		Epoch:     epoch,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.insertBranch(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBranch inserts a new branch parented at (parentBranchID,
// parentSerial).
func (m *Manager) CreateBranch(ctx context.Context, docID string, epoch int, name, parentBranchID string, parentSerial int) (*types.Branch, error) {
	b := &types.Branch{
		BranchID:       idgen.New(),
		DocID:          docID,
		Epoch:          epoch,
		ParentBranchID: parentBranchID,
		ParentSerial:   parentSerial,
		Name:           name,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.insertBranch(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Manager) insertBranch(ctx context.Context, b *types.Branch) error {
	err := m.branches.InsertOne(ctx, store.Doc{
		"_id":            b.BranchID,
		"docId":          b.DocID,
		"epoch":          b.Epoch,
		"parentBranchId": b.ParentBranchID,
		"parentSerial":   b.ParentSerial,
		"name":           b.Name,
		"createdAt":      b.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("branch: createBranch: %w", err)
	}
	return nil
}

// Get returns a single branch by ID, validated to belong to
// (docId, epoch). Returns ErrBranchNotFound if branchID is not a
// well-formed ID or exists but belongs to a different document or
// epoch, and nil, nil if a well-formed branchID does not exist at all.
func (m *Manager) Get(ctx context.Context, docID string, epoch int, branchID string) (*types.Branch, error) {
	if !idgen.Valid(branchID) {
		return nil, fmt.Errorf("branch: get: %w", errs.ErrBranchNotFound)
	}
	doc, err := m.branches.FindOne(ctx, store.Filter{"_id": branchID}, store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("branch: get: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	b, err := docToBranch(doc)
	if err != nil {
		return nil, err
	}
	if b.DocID != docID || b.Epoch != epoch {
		return nil, fmt.Errorf("branch: get: %w", errs.ErrBranchNotFound)
	}
	return b, nil
}

// List returns every branch of (docId, epoch).
func (m *Manager) List(ctx context.Context, docID string, epoch int) ([]*types.Branch, error) {
	docs, err := m.branches.Find(ctx, store.Filter{"docId": docID, "epoch": epoch}, store.FindOptions{
		Sort: store.Sort{{Field: "createdAt", Ascending: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("branch: list: %w", err)
	}
	out := make([]*types.Branch, 0, len(docs))
	for _, d := range docs {
		b, err := docToBranch(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ReparentChildren updates parentSerial to newSerial on every branch
// of (docId, epoch) parented at parentBranchID with a parentSerial
// greater than newSerial. Used by revert (§4.6.5 step 4).
func (m *Manager) ReparentChildren(ctx context.Context, docID string, epoch int, parentBranchID string, newSerial int) (int, error) {
	filter := store.Filter{
		"docId":          docID,
		"epoch":          epoch,
		"parentBranchId": parentBranchID,
		"parentSerial":   store.Gt{Value: newSerial},
	}
	n, err := m.branches.UpdateMany(ctx, filter, store.Update{"parentSerial": newSerial})
	if err != nil {
		return 0, fmt.Errorf("branch: reparentChildren: %w", err)
	}
	return n, nil
}

// CountMetadata counts metadata rows for docId, optionally restricted
// to one epoch. Used by purge to detect NotFound and to report
// epochsPurged.
func (m *Manager) CountMetadata(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	n, err := m.metadata.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("branch: countMetadata: %w", err)
	}
	return n, nil
}

// CountAll counts branches for docId, optionally restricted to one
// epoch. Used by squash's dry-run report.
func (m *Manager) CountAll(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	n, err := m.branches.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("branch: countAll: %w", err)
	}
	return n, nil
}

// DeleteAll removes every branch for docId, optionally restricted to
// one epoch. Used by squash/purge.
func (m *Manager) DeleteAll(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	n, err := m.branches.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("branch: deleteAll: %w", err)
	}
	return n, nil
}

func docToMetadata(d store.Doc) (*types.Metadata, error) {
	epoch, err := asInt(d["epoch"])
	if err != nil {
		return nil, fmt.Errorf("branch: decode metadata epoch: %w", err)
	}
	docID, _ := d["docId"].(string)
	activeBranchID, _ := d["activeBranchId"].(string)
	status, _ := d["status"].(string)
	createdAt, _ := asTime(d["createdAt"])
	updatedAt, _ := asTime(d["updatedAt"])
	return &types.Metadata{
		DocID:          docID,
		Epoch:          epoch,
		ActiveBranchID: activeBranchID,
		Status:         types.MetadataStatus(status),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func docToBranch(d store.Doc) (*types.Branch, error) {
	epoch, err := asInt(d["epoch"])
	if err != nil {
		return nil, fmt.Errorf("branch: decode branch epoch: %w", err)
	}
	parentSerial, _ := asInt(d["parentSerial"])
	id, _ := d["_id"].(string)
	docID, _ := d["docId"].(string)
	parentBranchID, _ := d["parentBranchId"].(string)
	name, _ := d["name"].(string)
	createdAt, _ := asTime(d["createdAt"])
	return &types.Branch{
		BranchID:       id,
		DocID:          docID,
		Epoch:          epoch,
		ParentBranchID: parentBranchID,
		ParentSerial:   parentSerial,
		Name:           name,
		CreatedAt:      createdAt,
	}, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, nil
	}
}

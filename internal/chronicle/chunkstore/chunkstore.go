// Package chunkstore implements component C2: persisting and
// retrieving immutable ChronicleChunk records, and maintaining the
// isLatest invariant across the (docId, epoch, branchId) group it
// belongs to.
package chunkstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chronicled/chronicle/internal/chronicle/idgen"
	"github.com/chronicled/chronicle/internal/chronicle/store"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

// Store wraps the chunks collection of one chronicle-backed
// collection.
type Store struct {
	coll store.Collection
}

// New wraps an already-initialized chunks collection.
func New(coll store.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the abstract indexes §4.2 requires: the
// primary lookup, the partial isLatest index, the time index, and the
// deleted partial index. Per-payload-field indexes are created
// separately by the engine at initialize time, once the declared
// indexed fields are known.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []store.IndexSpec{
		{
			Name:   "idx_chunks_primary",
			Fields: []store.SortField{{Field: "docId"}, {Field: "epoch"}, {Field: "branchId"}, {Field: "serial", Ascending: false}},
		},
		{
			Name:    "idx_chunks_latest",
			Fields:  []store.SortField{{Field: "docId"}, {Field: "epoch"}, {Field: "branchId"}},
			Partial: store.Filter{"isLatest": true},
		},
		{
			Name:   "idx_chunks_branch_ctime",
			Fields: []store.SortField{{Field: "branchId"}, {Field: "cTime", Ascending: false}},
		},
		{
			Name:    "idx_chunks_deleted",
			Fields:  []store.SortField{{Field: "branchId"}},
			Partial: store.Filter{"isLatest": true, "isDeleted": true},
		},
	}
	for _, spec := range specs {
		if err := s.coll.CreateIndex(ctx, spec); err != nil {
			return fmt.Errorf("chunkstore: ensure indexes: %w", err)
		}
	}
	return nil
}

func groupFilter(docID string, epoch int, branchID string) store.Filter {
	return store.Filter{"docId": docID, "epoch": epoch, "branchId": branchID}
}

// ClearLatest clears isLatest on whichever chunk in the group
// currently carries it. It is a no-op if none does.
func (s *Store) ClearLatest(ctx context.Context, docID string, epoch int, branchID string) error {
	filter := groupFilter(docID, epoch, branchID)
	filter["isLatest"] = true
	if _, err := s.coll.UpdateMany(ctx, filter, store.Update{"isLatest": false}); err != nil {
		return fmt.Errorf("chunkstore: clearLatest: %w", err)
	}
	return nil
}

// AppendChunk clears any existing isLatest chunk in the group, then
// inserts the new chunk as isLatest=true. Per §5, this two-step
// clear-then-insert sequence is the core's obligation under a store
// that lacks multi-row transactions; readers tolerate the transient
// overlap window by preferring the highest serial.
func (s *Store) AppendChunk(ctx context.Context, docID string, epoch int, branchID string, serial int, ccType types.CCType, isDeleted bool, payload types.Payload) (string, error) {
	if err := s.ClearLatest(ctx, docID, epoch, branchID); err != nil {
		return "", err
	}
	chunkID, err := idgen.Generate(ctx, func(ctx context.Context, id string) (bool, error) {
		n, err := s.coll.CountDocuments(ctx, store.Filter{"_id": id})
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return "", fmt.Errorf("chunkstore: appendChunk: %w", err)
	}
	doc := store.Doc{
		"_id":       chunkID,
		"docId":     docID,
		"epoch":     epoch,
		"branchId":  branchID,
		"serial":    serial,
		"ccType":    int(ccType),
		"isDeleted": isDeleted,
		"isLatest":  true,
		"cTime":     time.Now().UTC(),
		"payload":   map[string]any(payload),
	}
	if err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("chunkstore: appendChunk: %w", err)
	}
	return chunkID, nil
}

// FindLatest returns the chunk currently marked isLatest in the
// group, preferring the highest serial if more than one transiently
// qualifies.
func (s *Store) FindLatest(ctx context.Context, docID string, epoch int, branchID string) (*types.Chunk, error) {
	filter := groupFilter(docID, epoch, branchID)
	filter["isLatest"] = true
	docs, err := s.coll.Find(ctx, filter, store.FindOptions{
		Sort: store.Sort{{Field: "serial", Ascending: false}},
	})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: findLatest: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docToChunk(docs[0])
}

// FindBySerial returns the chunk at the exact serial, or nil if none.
func (s *Store) FindBySerial(ctx context.Context, docID string, epoch int, branchID string, serial int) (*types.Chunk, error) {
	filter := groupFilter(docID, epoch, branchID)
	filter["serial"] = serial
	doc, err := s.coll.FindOne(ctx, filter, store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: findBySerial: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return docToChunk(doc)
}

// Bound narrows listOrdered to chunks at or before a serial or a
// timestamp. Exactly one of SerialLE/TimeLE should be set; neither
// set means "latest" (no bound).
type Bound struct {
	SerialLE *int
	TimeLE   *time.Time
}

// ListOrdered returns the group's chunks honoring bound, ascending by
// serial.
func (s *Store) ListOrdered(ctx context.Context, docID string, epoch int, branchID string, bound Bound) ([]*types.Chunk, error) {
	filter := groupFilter(docID, epoch, branchID)
	if bound.SerialLE != nil {
		filter["serial"] = store.Lte{Value: *bound.SerialLE}
	}
	if bound.TimeLE != nil {
		filter["cTime"] = store.Lte{Value: *bound.TimeLE}
	}
	docs, err := s.coll.Find(ctx, filter, store.FindOptions{
		Sort: store.Sort{{Field: "serial", Ascending: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: listOrdered: %w", err)
	}
	chunks := make([]*types.Chunk, 0, len(docs))
	for _, d := range docs {
		c, err := docToChunk(d)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// SetLatestBySerial clears whichever chunk in the group currently
// carries isLatest and sets it on the chunk at serial. Used by revert
// step 3 to re-crown the target chunk after the chunks ahead of it
// are deleted.
func (s *Store) SetLatestBySerial(ctx context.Context, docID string, epoch int, branchID string, serial int) error {
	if err := s.ClearLatest(ctx, docID, epoch, branchID); err != nil {
		return err
	}
	filter := groupFilter(docID, epoch, branchID)
	filter["serial"] = serial
	if err := s.coll.UpdateOne(ctx, filter, store.Update{"isLatest": true}, store.UpdateOptions{}); err != nil {
		return fmt.Errorf("chunkstore: setLatestBySerial: %w", err)
	}
	return nil
}

// CountForDoc counts every chunk belonging to docId, optionally
// restricted to one epoch. Used by squash's dry-run report.
func (s *Store) CountForDoc(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: countForDoc: %w", err)
	}
	return n, nil
}

// ListDeleted scans the collection (across every docId) for the
// latest, deleted chunk of each lineage, honoring an optional cTime
// range, sorted by cTime descending. Used by listDeleted, which is a
// collection-wide scan rather than a per-document one.
func (s *Store) ListDeleted(ctx context.Context, after, before *time.Time) ([]*types.Chunk, error) {
	filter := store.Filter{"isLatest": true, "isDeleted": true}
	if after != nil {
		filter["cTime"] = store.Gte{Value: *after}
	}
	docs, err := s.coll.Find(ctx, filter, store.FindOptions{
		Sort: store.Sort{{Field: "cTime", Ascending: false}},
	})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: listDeleted: %w", err)
	}
	chunks := make([]*types.Chunk, 0, len(docs))
	for _, d := range docs {
		c, err := docToChunk(d)
		if err != nil {
			return nil, err
		}
		if before != nil && c.CTime.After(*before) {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// DeleteAfter deletes chunks with serial > n, returning the count
// removed. Used by revert.
func (s *Store) DeleteAfter(ctx context.Context, docID string, epoch int, branchID string, n int) (int, error) {
	filter := groupFilter(docID, epoch, branchID)
	filter["serial"] = store.Gt{Value: n}
	count, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: deleteAfter: %w", err)
	}
	return count, nil
}

// DeleteAll cascades delete for a docId, optionally restricted to one
// epoch. Used by squash/purge.
func (s *Store) DeleteAll(ctx context.Context, docID string, epoch *int) (int, error) {
	filter := store.Filter{"docId": docID}
	if epoch != nil {
		filter["epoch"] = *epoch
	}
	count, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: deleteAll: %w", err)
	}
	return count, nil
}

func docToChunk(d store.Doc) (*types.Chunk, error) {
	payload, _ := d["payload"].(map[string]any)
	serial, err := asInt(d["serial"])
	if err != nil {
		return nil, fmt.Errorf("chunkstore: decode serial: %w", err)
	}
	epoch, err := asInt(d["epoch"])
	if err != nil {
		return nil, fmt.Errorf("chunkstore: decode epoch: %w", err)
	}
	ccType, err := asInt(d["ccType"])
	if err != nil {
		return nil, fmt.Errorf("chunkstore: decode ccType: %w", err)
	}
	cTime, err := asTime(d["cTime"])
	if err != nil {
		return nil, fmt.Errorf("chunkstore: decode cTime: %w", err)
	}
	id, _ := d["_id"].(string)
	docID, _ := d["docId"].(string)
	branchID, _ := d["branchId"].(string)
	isDeleted, _ := d["isDeleted"].(bool)
	isLatest, _ := d["isLatest"].(bool)

	return &types.Chunk{
		ChunkID:   id,
		DocID:     docID,
		Epoch:     epoch,
		BranchID:  branchID,
		Serial:    serial,
		CCType:    types.CCType(ccType),
		IsDeleted: isDeleted,
		IsLatest:  isLatest,
		CTime:     cTime,
		Payload:   types.Payload(payload),
	}, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
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
	case primitive.DateTime:
		return t.Time(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, fmt.Errorf("expected time value, got %T", v)
	}
}

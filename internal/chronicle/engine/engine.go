// Package engine implements component C6, the public operation
// surface composing C1-C5: save, softDelete, undelete, asOf, revert,
// squash, purge, listDeleted, createBranch, switchBranch, listBranches,
// getActiveBranch. Initialize consults config.Load() for any
// engine-wide knob the caller's Options leaves unset.
package engine

import (
	"context"
	"fmt"

	"github.com/chronicled/chronicle/internal/chronicle/audit"
	"github.com/chronicled/chronicle/internal/chronicle/branch"
	"github.com/chronicled/chronicle/internal/chronicle/chunkstore"
	"github.com/chronicled/chronicle/internal/chronicle/config"
	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/idgen"
	"github.com/chronicled/chronicle/internal/chronicle/keyindex"
	"github.com/chronicled/chronicle/internal/chronicle/store"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

const (
	rootBranchName = "main"
	configCollName = "chronicle_config"
	suffixChunks   = "_chronicle_chunks"
	suffixBranches = "_chronicle_branches"
	suffixMetadata = "_chronicle_metadata"
	suffixKeys     = "_chronicle_keys"
)

// Options configures Initialize.
type Options struct {
	FullChunkInterval int
	IndexedFields     []string
	UniqueFields      []string
	PluginVersion     string
	// AuditTrail receives a lifecycle event for every mutating
	// operation. A nil trail falls back to config.Load().AuditLogPath
	// (empty disables auditing; see package audit).
	AuditTrail *audit.Trail
}

// Engine is the chronicle operation surface bound to one logical
// collection.
type Engine struct {
	collectionName string
	cfg            types.Config
	chunks         *chunkstore.Store
	keys           *keyindex.Index
	branches       *branch.Manager
	audit          *audit.Trail
}

// Initialize ensures the config, metadata, branch, chunk, and key
// collections (plus their indexes) exist for collectionName, and
// returns an Engine bound to them. Calling Initialize again on an
// already-initialized collection is idempotent: the persisted config
// row is left untouched if one already exists.
func Initialize(ctx context.Context, db store.Database, collectionName string, opts Options) (*Engine, error) {
	chunksColl, err := db.Collection(collectionName + suffixChunks)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", errs.ErrNotConnected)
	}
	branchesColl, err := db.Collection(collectionName + suffixBranches)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", errs.ErrNotConnected)
	}
	metadataColl, err := db.Collection(collectionName + suffixMetadata)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", errs.ErrNotConnected)
	}
	keysColl, err := db.Collection(collectionName + suffixKeys)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", errs.ErrNotConnected)
	}
	configColl, err := db.Collection(configCollName)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", errs.ErrNotConnected)
	}

	engineCfg := config.Load()

	cfg, err := loadOrCreateConfig(ctx, configColl, collectionName, opts, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", err)
	}

	auditTrail := opts.AuditTrail
	if auditTrail == nil {
		auditTrail = audit.New(engineCfg.AuditLogPath)
	}

	chunks := chunkstore.New(chunksColl)
	if err := chunks.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", err)
	}
	for _, f := range cfg.IndexedFields {
		if err := chunksColl.CreateIndex(ctx, store.IndexSpec{
			Name:    "idx_chunks_payload_" + f,
			Fields:  []store.SortField{{Field: "payload." + f}, {Field: "branchId"}},
			Partial: store.Filter{"isLatest": true, "isDeleted": false},
		}); err != nil {
			return nil, fmt.Errorf("engine: initialize: payload index %s: %w", f, err)
		}
	}

	keys := keyindex.New(keysColl, cfg.UniqueFields)
	if err := keys.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", err)
	}

	branches := branch.New(branchesColl, metadataColl)
	if err := branches.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", err)
	}

	return &Engine{
		collectionName: collectionName,
		cfg:            cfg,
		chunks:         chunks,
		keys:           keys,
		branches:       branches,
		audit:          auditTrail,
	}, nil
}

func loadOrCreateConfig(ctx context.Context, coll store.Collection, name string, opts Options, engineCfg *config.Engine) (types.Config, error) {
	doc, err := coll.FindOne(ctx, store.Filter{"collectionName": name}, store.FindOptions{})
	if err != nil {
		return types.Config{}, fmt.Errorf("load config: %w", err)
	}
	if doc != nil {
		return docToConfig(doc), nil
	}

	interval := opts.FullChunkInterval
	if interval <= 0 {
		interval = engineCfg.DefaultFullChunkInterval
	}
	if interval <= 0 {
		interval = types.DefaultFullChunkInterval
	}
	cfg := types.Config{
		CollectionName:    name,
		FullChunkInterval: interval,
		PluginVersion:     opts.PluginVersion,
		IndexedFields:     opts.IndexedFields,
		UniqueFields:      opts.UniqueFields,
	}
	if err := coll.InsertOne(ctx, store.Doc{
		"_id":               idgen.New(),
		"collectionName":    cfg.CollectionName,
		"fullChunkInterval": cfg.FullChunkInterval,
		"pluginVersion":     cfg.PluginVersion,
		"indexedFields":     toAnySlice(cfg.IndexedFields),
		"uniqueFields":      toAnySlice(cfg.UniqueFields),
	}); err != nil {
		return types.Config{}, fmt.Errorf("create config: %w", err)
	}
	return cfg, nil
}

func docToConfig(d store.Doc) types.Config {
	name, _ := d["collectionName"].(string)
	version, _ := d["pluginVersion"].(string)
	interval := types.DefaultFullChunkInterval
	switch n := d["fullChunkInterval"].(type) {
	case int:
		interval = n
	case int64:
		interval = int(n)
	case float64:
		interval = int(n)
	}
	return types.Config{
		CollectionName:    name,
		FullChunkInterval: interval,
		PluginVersion:     version,
		IndexedFields:     toStringSlice(d["indexedFields"]),
		UniqueFields:      toStringSlice(d["uniqueFields"]),
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ready guards every public operation against a zero-value *Engine —
// one obtained by a struct literal rather than Initialize.
func (e *Engine) ready() error {
	if e == nil || e.chunks == nil {
		return errs.ErrNotInitialized
	}
	return nil
}

// recordEvent is a best-effort audit write: a broken audit trail
// never fails the caller's operation.
func (e *Engine) recordEvent(op, docID string, epoch int, branchID string, serial int, detail string) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(audit.Entry{
		Op:       op,
		DocID:    docID,
		Epoch:    epoch,
		BranchID: branchID,
		Serial:   serial,
		Detail:   detail,
	})
}

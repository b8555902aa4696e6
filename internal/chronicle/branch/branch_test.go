package branch

import (
	"context"
	"errors"
	"testing"

	"github.com/chronicled/chronicle/internal/chronicle/errs"
	"github.com/chronicled/chronicle/internal/chronicle/store/sqlite"
	"github.com/chronicled/chronicle/internal/chronicle/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	branches, err := db.Collection("docs_chronicle_branches")
	if err != nil {
		t.Fatalf("Collection(branches) failed: %v", err)
	}
	metadata, err := db.Collection("docs_chronicle_metadata")
	if err != nil {
		t.Fatalf("Collection(metadata) failed: %v", err)
	}
	m := New(branches, metadata)
	if err := m.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	return m
}

func TestCreateAndGetMetadata(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateMetadata(ctx, "d1", 1, "main-branch"); err != nil {
		t.Fatalf("CreateMetadata failed: %v", err)
	}
	md, err := m.GetMetadata(ctx, "d1", 1)
	if err != nil || md == nil {
		t.Fatalf("GetMetadata failed: %v, md=%v", err, md)
	}
	if md.Status != types.StatusPending {
		t.Errorf("expected pending status, got %v", md.Status)
	}

	if err := m.SetStatus(ctx, "d1", 1, types.StatusActive); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	md, _ = m.GetMetadata(ctx, "d1", 1)
	if md.Status != types.StatusActive {
		t.Errorf("expected active status after SetStatus, got %v", md.Status)
	}
}

func TestGetMetadataHighestEpoch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_ = m.CreateMetadata(ctx, "d1", 1, "b1")
	_ = m.CreateMetadata(ctx, "d1", 2, "b2")

	md, err := m.GetMetadata(ctx, "d1", -1)
	if err != nil || md == nil {
		t.Fatalf("GetMetadata(highest) failed: %v", err)
	}
	if md.Epoch != 2 {
		t.Errorf("expected highest epoch 2, got %d", md.Epoch)
	}
}

func TestCreateBranchAndReparentChildren(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	main, err := m.CreateRootBranch(ctx, "d1", 1, "main")
	if err != nil {
		t.Fatalf("CreateRootBranch failed: %v", err)
	}
	child, err := m.CreateBranch(ctx, "d1", 1, "child", main.BranchID, 3)
	if err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	n, err := m.ReparentChildren(ctx, "d1", 1, main.BranchID, 2)
	if err != nil {
		t.Fatalf("ReparentChildren failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reparented child, got %d", n)
	}

	got, err := m.Get(ctx, "d1", 1, child.BranchID)
	if err != nil || got == nil {
		t.Fatalf("Get(child) failed: %v", err)
	}
	if got.ParentSerial != 2 {
		t.Errorf("expected reparented serial 2, got %d", got.ParentSerial)
	}
}

func TestGetBranchWrongDocReturnsBranchNotFound(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	b, err := m.CreateRootBranch(ctx, "d1", 1, "main")
	if err != nil {
		t.Fatalf("CreateRootBranch failed: %v", err)
	}

	_, err = m.Get(ctx, "d2", 1, b.BranchID)
	if err == nil {
		t.Fatal("expected error fetching another doc's branch")
	}
	if !errors.Is(err, errs.ErrBranchNotFound) {
		t.Fatalf("expected ErrBranchNotFound, got %v", err)
	}
}

func TestListReturnsAllBranches(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	main, _ := m.CreateRootBranch(ctx, "d1", 1, "main")
	_, _ = m.CreateBranch(ctx, "d1", 1, "feat", main.BranchID, 1)

	branches, err := m.List(ctx, "d1", 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(branches))
	}
}

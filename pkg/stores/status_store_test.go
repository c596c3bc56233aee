package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

func newTestStore(t *testing.T) *StatusStore {
	t.Helper()

	store, err := NewStatusStore(Config{Path: filepath.Join(t.TempDir(), "status.db")})
	if err != nil {
		t.Fatalf("NewStatusStore: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(t *testing.T, store *StatusStore, module string, state orchestrator.ModuleState, at time.Time) {
	t.Helper()
	err := store.RecordStatus(context.Background(), orchestrator.ModuleStatus{
		ID:     uuid.NewString(),
		Module: module,
		State:  state,
		At:     at,
	})
	if err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
}

func TestNewStatusStoreRequiresPath(t *testing.T) {
	if _, err := NewStatusStore(Config{}); err == nil {
		t.Error("empty path accepted")
	}
}

func TestRecordAndListStatuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	record(t, store, "cart", orchestrator.StateBundleLoading, base)
	record(t, store, "cart", orchestrator.StateBundleLoaded, base.Add(time.Second))
	record(t, store, "cart", orchestrator.StateMounted, base.Add(2*time.Second))
	record(t, store, "help", orchestrator.StateBundleLoading, base.Add(time.Second))

	statuses, err := store.ListStatuses(ctx, "cart")
	if err != nil {
		t.Fatalf("ListStatuses: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("got %d records, want 3", len(statuses))
	}

	want := []orchestrator.ModuleState{
		orchestrator.StateBundleLoading,
		orchestrator.StateBundleLoaded,
		orchestrator.StateMounted,
	}
	for i, st := range statuses {
		if st.Module != "cart" {
			t.Errorf("record %d module = %s", i, st.Module)
		}
		if st.State != want[i] {
			t.Errorf("record %d state = %s, want %s", i, st.State, want[i])
		}
	}

	all, err := store.ListStatuses(ctx, "")
	if err != nil {
		t.Fatalf("ListStatuses all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d records, want 4", len(all))
	}
}

func TestListStatusesUnknownModule(t *testing.T) {
	store := newTestStore(t)

	statuses, err := store.ListStatuses(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("ListStatuses: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("got %d records for unknown module", len(statuses))
	}
}

func TestLatestStatuses(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	record(t, store, "cart", orchestrator.StateBundleLoading, base)
	record(t, store, "cart", orchestrator.StateMounted, base.Add(5*time.Second))
	record(t, store, "help", orchestrator.StateBundleLoadFailed, base.Add(time.Second))

	latest, err := store.LatestStatuses(context.Background())
	if err != nil {
		t.Fatalf("LatestStatuses: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("got %d records, want 2", len(latest))
	}

	// Ordered by module name.
	if latest[0].Module != "cart" || latest[0].State != orchestrator.StateMounted {
		t.Errorf("cart latest = %+v", latest[0])
	}
	if latest[1].Module != "help" || latest[1].State != orchestrator.StateBundleLoadFailed {
		t.Errorf("help latest = %+v", latest[1])
	}
}

func TestRemoveAllStatuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "cart", orchestrator.StateMounted, time.Now().UTC())
	if err := store.RemoveAllStatuses(ctx); err != nil {
		t.Fatalf("RemoveAllStatuses: %v", err)
	}

	statuses, err := store.ListStatuses(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 0 {
		t.Errorf("%d records survived the reset", len(statuses))
	}
}

func TestUninitializedStore(t *testing.T) {
	store, err := NewStatusStore(Config{Path: filepath.Join(t.TempDir(), "status.db")})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.RecordStatus(ctx, orchestrator.ModuleStatus{}); err == nil {
		t.Error("record on closed store succeeded")
	}
	if _, err := store.ListStatuses(ctx, ""); err == nil {
		t.Error("list on closed store succeeded")
	}
}

func TestInitIsIdempotentAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.db")
	ctx := context.Background()

	first, err := NewStatusStore(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	record(t, first, "cart", orchestrator.StateMounted, time.Now().UTC())
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := NewStatusStore(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen Init: %v", err)
	}
	defer second.Close()

	statuses, err := second.ListStatuses(ctx, "cart")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 {
		t.Errorf("got %d records after reopen, want 1", len(statuses))
	}
}

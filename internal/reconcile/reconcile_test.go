package reconcile

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(filepath.Join(dir, "state.json"), logger)
}

func TestReconcile_AdoptsOrphans(t *testing.T) {
	st := newTestStore(t)
	rt := runtime.NewFakeAdapter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt.Seed("vnc_pool_0", runtime.ContainerInfo{ID: "p0", Name: "vnc_pool_0", Port: 5002})
	rt.Seed("vnc_12345", runtime.ContainerInfo{ID: "c1", Name: "vnc_12345", Port: 5003})

	if err := Reconcile(context.Background(), st, rt, logger); err != nil {
		t.Fatal(err)
	}

	records := st.LoadRecords()
	if len(records) != 2 {
		t.Fatalf("expected 2 adopted records, got %d", len(records))
	}

	pool := st.FindUnassigned()
	if len(pool) != 1 || pool[0].Port != 5002 {
		t.Fatalf("expected pool record on port 5002, got %+v", pool)
	}

	client, ok := st.FindByClient("12345")
	if !ok || client.Port != 5003 {
		t.Fatalf("expected client 12345 on port 5003, got %+v", client)
	}
}

func TestReconcile_DropsDeadRecords(t *testing.T) {
	st := newTestStore(t)
	rt := runtime.NewFakeAdapter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := st.SaveRecords([]store.ContainerRecord{
		{ClientID: "A", ContainerID: "ghost", ContainerName: "vnc_A", Port: 5000, CreatedAt: time.Now(), LastAccessed: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	if err := Reconcile(context.Background(), st, rt, logger); err != nil {
		t.Fatal(err)
	}

	if records := st.LoadRecords(); len(records) != 0 {
		t.Fatalf("expected dead record dropped, got %d records", len(records))
	}
}

func TestReconcile_DropsDuplicates(t *testing.T) {
	st := newTestStore(t)
	rt := runtime.NewFakeAdapter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt.Seed("vnc_A", runtime.ContainerInfo{ID: "a1", Name: "vnc_A", Port: 5000})
	rt.Seed("vnc_A_dup", runtime.ContainerInfo{ID: "a2", Name: "vnc_A_dup", Port: 5001})

	if err := st.SaveRecords([]store.ContainerRecord{
		{ClientID: "A", ContainerID: "a1", ContainerName: "vnc_A", Port: 5000, CreatedAt: time.Now(), LastAccessed: time.Now()},
		{ClientID: "A", ContainerID: "a2", ContainerName: "vnc_A_dup", Port: 5001, CreatedAt: time.Now(), LastAccessed: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	if err := Reconcile(context.Background(), st, rt, logger); err != nil {
		t.Fatal(err)
	}

	records := st.LoadRecords()
	if len(records) != 1 {
		t.Fatalf("expected one surviving record for client A, got %d", len(records))
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	st := newTestStore(t)
	rt := runtime.NewFakeAdapter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt.Seed("vnc_pool_0", runtime.ContainerInfo{ID: "p0", Name: "vnc_pool_0", Port: 5002})
	rt.Seed("vnc_12345", runtime.ContainerInfo{ID: "c1", Name: "vnc_12345", Port: 5003})

	if err := Reconcile(context.Background(), st, rt, logger); err != nil {
		t.Fatal(err)
	}
	first := st.LoadRecords()

	if err := Reconcile(context.Background(), st, rt, logger); err != nil {
		t.Fatal(err)
	}
	second := st.LoadRecords()

	if len(first) != len(second) {
		t.Fatalf("expected reconcile to be idempotent in record count, got %d vs %d", len(first), len(second))
	}
}

package warmpool

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

func newTestManager(t *testing.T, size int) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(filepath.Join(dir, "state.json"), logger)
	rt := runtime.NewFakeAdapter()
	cfg := Config{
		Size:          size,
		PortMin:       5000,
		PortMax:       5003,
		Image:         "kiosk:latest",
		ContainerPort: 6080,
		AppName:       "kiosk",
		DefaultWidth:  "1280",
		DefaultHeight: "720",
	}
	return NewManager(st, rt, nil, nil, cfg, logger), st
}

func TestReplenish_FillsToTarget(t *testing.T) {
	m, st := newTestManager(t, 2)

	if err := m.Replenish(context.Background()); err != nil {
		t.Fatal(err)
	}

	pool := st.FindUnassigned()
	if len(pool) != 2 {
		t.Fatalf("expected 2 pool records, got %d", len(pool))
	}
}

func TestReplenish_Idempotent(t *testing.T) {
	m, st := newTestManager(t, 2)

	if err := m.Replenish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Replenish(context.Background()); err != nil {
		t.Fatal(err)
	}

	pool := st.FindUnassigned()
	if len(pool) != 2 {
		t.Fatalf("expected exactly 2 pool records after two replenishes, got %d", len(pool))
	}
}

func TestReplenish_ZeroSizeIsNoop(t *testing.T) {
	m, st := newTestManager(t, 0)

	if err := m.Replenish(context.Background()); err != nil {
		t.Fatal(err)
	}

	pool := st.FindUnassigned()
	if len(pool) != 0 {
		t.Fatalf("expected no pool records when size is 0, got %d", len(pool))
	}
}

func TestReplenish_StopsEarlyOnAllocatorExhaustion(t *testing.T) {
	m, st := newTestManager(t, 10)
	m.cfg.PortMin = 5000
	m.cfg.PortMax = 5001

	if err := m.Replenish(context.Background()); err != nil {
		t.Fatal(err)
	}

	pool := st.FindUnassigned()
	if len(pool) != 2 {
		t.Fatalf("expected replenish to stop at 2 (port range exhausted), got %d", len(pool))
	}
}

package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

type fakeReplenisher struct {
	triggered int
}

func (f *fakeReplenisher) TriggerReplenish() { f.triggered++ }

func newTestService(t *testing.T, portMin, portMax int) (*Service, *store.Store, *runtime.FakeAdapter, *fakeReplenisher) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(filepath.Join(dir, "state.json"), logger)
	rt := runtime.NewFakeAdapter()
	rep := &fakeReplenisher{}
	cfg := Config{
		VNCHost:       "localhost",
		Image:         "kiosk:latest",
		ContainerPort: 6080,
		PortMin:       portMin,
		PortMax:       portMax,
		AppName:       "kiosk",
		DefaultWidth:  "1280",
		DefaultHeight: "720",
	}
	return NewService(st, rt, rep, nil, cfg, logger), st, rt, rep
}

func TestAccess_FreshCreate(t *testing.T) {
	svc, _, rt, _ := newTestService(t, 5000, 5001)

	res, err := svc.Access(context.Background(), "A", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "created" {
		t.Fatalf("expected created, got %s", res.Action)
	}
	if res.URL != "http://localhost:5000" {
		t.Fatalf("unexpected url: %s", res.URL)
	}
	if _, ok := rt.Containers["vnc_A"]; !ok {
		t.Fatal("expected container vnc_A to exist")
	}
}

func TestAccess_ReuseHealthy(t *testing.T) {
	svc, _, _, _ := newTestService(t, 5000, 5001)

	first, err := svc.Access(context.Background(), "A", "", "")
	if err != nil {
		t.Fatal(err)
	}

	second, err := svc.Access(context.Background(), "A", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.Action != "reused" {
		t.Fatalf("expected reused, got %s", second.Action)
	}
	if second.URL != first.URL {
		t.Fatalf("expected same url on reuse, got %s vs %s", second.URL, first.URL)
	}
}

func TestAccess_DeadRecovery(t *testing.T) {
	svc, _, rt, _ := newTestService(t, 5000, 5001)

	if _, err := svc.Access(context.Background(), "A", "", ""); err != nil {
		t.Fatal(err)
	}
	rt.SetHealthy("vnc_A", false)

	res, err := svc.Access(context.Background(), "A", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "created" {
		t.Fatalf("expected created on dead recovery, got %s", res.Action)
	}
	if res.URL != "http://localhost:5000" {
		t.Fatalf("expected port 5000 reused, got %s", res.URL)
	}
}

func TestAccess_PoolClaim(t *testing.T) {
	svc, st, rt, rep := newTestService(t, 5000, 5001)

	rt.Seed("vnc_pool_0", runtime.ContainerInfo{ID: "pool-1", Name: "vnc_pool_0", Port: 5001})
	if _, err := st.AddRecord(store.PoolClientID, "pool-1", "vnc_pool_0", 5001, "", ""); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Access(context.Background(), "B", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "pool" {
		t.Fatalf("expected pool, got %s", res.Action)
	}
	if res.URL != "http://localhost:5001" {
		t.Fatalf("unexpected url: %s", res.URL)
	}
	if rep.triggered != 1 {
		t.Fatalf("expected replenish to be triggered once, got %d", rep.triggered)
	}

	pool := st.FindUnassigned()
	if len(pool) != 0 {
		t.Fatalf("expected pool record to be consumed, got %d left", len(pool))
	}
}

func TestAccess_CapacityRecycle(t *testing.T) {
	svc, st, rt, _ := newTestService(t, 5000, 5000)

	if _, err := svc.Access(context.Background(), "A", "", ""); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	res, err := svc.Access(context.Background(), "B", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "created" {
		t.Fatalf("expected created after recycle, got %s", res.Action)
	}
	if res.URL != "http://localhost:5000" {
		t.Fatalf("expected reused port 5000, got %s", res.URL)
	}

	if _, ok := st.FindByClient("A"); ok {
		t.Fatal("expected A's record to be evicted")
	}
	if _, ok := rt.Containers["vnc_A"]; ok {
		t.Fatal("expected A's container to be removed")
	}
}

func TestAccess_CapacityExhausted_NoRecyclable(t *testing.T) {
	// An empty store with no allocatable ports and nothing to recycle is
	// the cleanest reproduction: no non-pool record ever exists that LRU
	// could evict, so the allocator failure is terminal.
	svc, _, _, _ := newTestService(t, 5000, 4999)

	_, err := svc.Access(context.Background(), "B", "", "")
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_slots") {
		t.Fatalf("expected error to include max_slots, got %v", err)
	}
}

func TestAccess_MissingClientID(t *testing.T) {
	svc, _, _, _ := newTestService(t, 5000, 5001)
	_, err := svc.Access(context.Background(), "", "", "")
	if err != ErrMissingClientID {
		t.Fatalf("expected ErrMissingClientID, got %v", err)
	}
}

func TestAccess_CreationFailed(t *testing.T) {
	svc, _, rt, _ := newTestService(t, 5000, 5001)
	rt.FailCreate = errCreateBoom

	_, err := svc.Access(context.Background(), "A", "", "")
	if err == nil {
		t.Fatal("expected creation error")
	}
}

var errCreateBoom = &boomError{}

type boomError struct{}

func (e *boomError) Error() string { return "docker daemon unreachable" }

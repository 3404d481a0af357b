package reaper

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

func TestTick_RemovesOnlyIdlePastThreshold(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(filepath.Join(dir, "state.json"), logger)
	rt := runtime.NewFakeAdapter()

	rt.Seed("vnc_A", runtime.ContainerInfo{ID: "a1", Name: "vnc_A", Port: 5000})
	rt.Seed("vnc_B", runtime.ContainerInfo{ID: "b1", Name: "vnc_B", Port: 5001})

	now := time.Now().UTC()
	records := []store.ContainerRecord{
		{ClientID: "A", ContainerID: "a1", ContainerName: "vnc_A", Port: 5000, CreatedAt: now.Add(-9 * time.Hour), LastAccessed: now.Add(-9 * time.Hour)},
		{ClientID: "B", ContainerID: "b1", ContainerName: "vnc_B", Port: 5001, CreatedAt: now.Add(-1 * time.Hour), LastAccessed: now.Add(-1 * time.Hour)},
	}
	if err := st.SaveRecords(records); err != nil {
		t.Fatal(err)
	}

	r := New(st, rt, nil, Config{Interval: time.Hour, IdleTimeout: 8 * time.Hour}, logger)
	r.tick(context.Background())

	if _, ok := st.FindByClient("A"); ok {
		t.Fatal("expected A to be reaped")
	}
	if _, ok := st.FindByClient("B"); !ok {
		t.Fatal("expected B to survive")
	}
	if _, ok := rt.Containers["vnc_A"]; ok {
		t.Fatal("expected A's container to be removed")
	}
	if _, ok := rt.Containers["vnc_B"]; !ok {
		t.Fatal("expected B's container to remain")
	}
}

func TestTick_SkipsMissingTimestamp(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(filepath.Join(dir, "state.json"), logger)
	rt := runtime.NewFakeAdapter()

	records := []store.ContainerRecord{
		{ClientID: "A", ContainerID: "a1", ContainerName: "vnc_A", Port: 5000, CreatedAt: time.Now()},
	}
	if err := st.SaveRecords(records); err != nil {
		t.Fatal(err)
	}

	r := New(st, rt, nil, Config{Interval: time.Hour, IdleTimeout: 8 * time.Hour}, logger)
	r.tick(context.Background())

	if _, ok := st.FindByClient("A"); !ok {
		t.Fatal("expected record with missing timestamp to be skipped, not reaped")
	}
}

func TestStart_Stop(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(filepath.Join(dir, "state.json"), logger)
	rt := runtime.NewFakeAdapter()

	r := New(st, rt, nil, Config{Interval: 10 * time.Millisecond, IdleTimeout: time.Hour}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	r.Stop()
}

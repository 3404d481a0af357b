package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeAdapter is an in-memory Adapter used by package tests that exercise
// store/access/warmpool/reaper/reconcile logic without a Docker daemon.
// Tests can poke at Containers directly to simulate out-of-band state
// (crashed containers, orphans the process didn't create).
type FakeAdapter struct {
	mu         sync.Mutex
	Containers map[string]*fakeContainer // keyed by name
	seq        int

	// FailCreate, when non-nil, is returned by Create instead of succeeding.
	FailCreate error
}

type fakeContainer struct {
	info    ContainerInfo
	healthy bool
}

func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{Containers: make(map[string]*fakeContainer)}
}

func (f *FakeAdapter) Create(ctx context.Context, opts CreateOptions) (ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreate != nil {
		return ContainerInfo{}, f.FailCreate
	}

	f.seq++
	info := ContainerInfo{
		ID:   fmt.Sprintf("fake-%d", f.seq),
		Name: opts.Name,
		Port: opts.HostPort,
	}
	f.Containers[opts.Name] = &fakeContainer{info: info, healthy: true}
	return info, nil
}

func (f *FakeAdapter) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, c := range f.Containers {
		if c.info.ID == id {
			delete(f.Containers, name)
			return nil
		}
	}
	return nil
}

func (f *FakeAdapter) IsHealthy(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.Containers {
		if c.info.ID == id {
			return c.healthy
		}
	}
	return false
}

func (f *FakeAdapter) ListOrchestrated(ctx context.Context) (map[string]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]ContainerInfo, len(f.Containers))
	for name, c := range f.Containers {
		if c.healthy {
			out[name] = c.info
		}
	}
	return out, nil
}

func (f *FakeAdapter) WaitReady(ctx context.Context, id string, timeout time.Duration) bool {
	return f.IsHealthy(ctx, id)
}

// SetHealthy lets a test simulate a container dying or recovering out from
// under the orchestrator.
func (f *FakeAdapter) SetHealthy(name string, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.Containers[name]; ok {
		c.healthy = healthy
	}
}

// Seed injects a container directly, bypassing Create, to simulate state
// that existed before the process started (for reconciler tests).
func (f *FakeAdapter) Seed(name string, info ContainerInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Containers[name] = &fakeContainer{info: info, healthy: true}
}

package runtime

import (
	"context"
	"time"
)

// Adapter is the opaque capability set over the container runtime that the
// orchestrator core depends on. It is the only boundary the core crosses to
// reach outside the process; every other component (store, allocator,
// access service, warm pool, reaper, reconciler) depends only on this
// interface, never on the docker client directly.
type Adapter interface {
	// Create runs a new detached container publishing CONTAINER_PORT/tcp on
	// hostPort. If a container named opts.Name already exists it is
	// force-removed first.
	Create(ctx context.Context, opts CreateOptions) (ContainerInfo, error)

	// Remove force-removes the container. Not-found is success.
	Remove(ctx context.Context, id string) error

	// IsHealthy reports whether the container's status is "running".
	// Not-found or any runtime error yields false.
	IsHealthy(ctx context.Context, id string) bool

	// ListOrchestrated enumerates every running container whose name
	// begins with "vnc_", keyed by name.
	ListOrchestrated(ctx context.Context) (map[string]ContainerInfo, error)

	// WaitReady polls the container's health state at a fixed resolution
	// until it reports healthy, reports unhealthy, disappears, or timeout
	// elapses. A timeout returns false but is not an error.
	WaitReady(ctx context.Context, id string, timeout time.Duration) bool
}

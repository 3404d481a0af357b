package warmpool

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"vncorchestrator/internal/eventbus"
	"vncorchestrator/internal/monitor"
	"vncorchestrator/internal/portalloc"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

type Config struct {
	Size          int
	PortMin       int
	PortMax       int
	Image         string
	ContainerPort int
	AppName       string
	DefaultWidth  string
	DefaultHeight string
	// TriggerDedupWindow bounds how long a pending replenish task
	// deduplicates repeated triggers from concurrent Access requests.
	TriggerDedupWindow time.Duration
}

// Manager maintains store.PoolClientID records at the configured target
// count. TriggerReplenish is the only method the Access Service calls
// directly; it must never block the HTTP caller.
type Manager struct {
	store       *store.Store
	runtime     runtime.Adapter
	asynqClient *asynq.Client
	bus         eventbus.EventBus
	cfg         Config
	logger      *slog.Logger
}

func NewManager(st *store.Store, rt runtime.Adapter, asynqClient *asynq.Client, bus eventbus.EventBus, cfg Config, logger *slog.Logger) *Manager {
	if cfg.TriggerDedupWindow == 0 {
		cfg.TriggerDedupWindow = 30 * time.Second
	}
	return &Manager{
		store:       st,
		runtime:     rt,
		asynqClient: asynqClient,
		bus:         bus,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "warmpool")),
	}
}

// TriggerReplenish enqueues a replenish task and returns immediately.
// Concurrent triggers within the dedup window collapse into one pending
// run via asynq.Unique.
func (m *Manager) TriggerReplenish() {
	if m.cfg.Size == 0 {
		return
	}

	task := asynq.NewTask(ReplenishTaskType, nil)
	_, err := m.asynqClient.Enqueue(task, asynq.Unique(m.cfg.TriggerDedupWindow))
	if err != nil && err != asynq.ErrDuplicateTask {
		m.logger.Warn("failed to enqueue replenish task", "error", err)
	}
}

// Replenish runs the synchronous fill algorithm: create containers until
// the pool holds Size records, stopping early on allocator exhaustion and
// logging past runtime failures without aborting the batch.
func (m *Manager) Replenish(ctx context.Context) error {
	start := time.Now()
	defer func() {
		monitor.PoolReplenishLatency.Observe(time.Since(start).Seconds())
	}()

	if m.cfg.Size == 0 {
		return nil
	}

	current := m.store.FindUnassigned()
	monitor.PoolIdleCount.Set(float64(len(current)))
	needed := m.cfg.Size - len(current)
	if needed <= 0 {
		return nil
	}

	created := 0
	for i := 0; i < needed; i++ {
		used := m.store.UsedPorts()
		port, ok := portalloc.Allocate(m.cfg.PortMin, m.cfg.PortMax, used)
		if !ok {
			m.logger.Info("port range exhausted, stopping replenish early", "created", created, "needed", needed)
			break
		}

		name := "vnc_pool_" + uuid.NewString()[:8]
		info, err := m.runtime.Create(ctx, runtime.CreateOptions{
			Name:     name,
			HostPort: port,
			EnvVars:  m.envVars(),
		})
		if err != nil {
			m.logger.Warn("failed to create pool container, continuing", "error", err)
			monitor.ContainerCreationErrors.Inc()
			continue
		}

		if !m.runtime.WaitReady(ctx, info.ID, 0) {
			m.logger.Warn("pool container did not become ready before timeout", "container_id", info.ID)
		}

		if _, err := m.store.AddRecord(store.PoolClientID, info.ID, name, port, m.cfg.DefaultWidth, m.cfg.DefaultHeight); err != nil {
			m.logger.Warn("failed to persist pool record", "error", err)
			if rmErr := m.runtime.Remove(ctx, info.ID); rmErr != nil {
				m.logger.Warn("failed to clean up orphaned pool container", "error", rmErr)
			}
			continue
		}
		created++
	}

	m.logger.Info("pool replenish complete", "created", created, "needed", needed)
	monitor.PoolIdleCount.Set(float64(len(current) + created))
	if created > 0 {
		m.publishReplenished(ctx, created)
	}
	return nil
}

func (m *Manager) publishReplenished(ctx context.Context, created int) {
	if m.bus == nil {
		return
	}
	evt := eventbus.Event{
		Type:      eventbus.EventPoolReplenished,
		ClientID:  store.PoolClientID,
		Payload:   map[string]int{"created": created},
		Timestamp: time.Now().UTC(),
	}
	if err := m.bus.Publish(ctx, store.PoolClientID, evt); err != nil {
		m.logger.Warn("failed to publish pool replenished event", "error", err)
	}
}

func (m *Manager) envVars() []string {
	return []string{
		"APP_NAME=" + m.cfg.AppName,
		"DISPLAY_WIDTH=" + m.cfg.DefaultWidth,
		"DISPLAY_HEIGHT=" + m.cfg.DefaultHeight,
	}
}

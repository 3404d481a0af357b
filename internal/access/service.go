// Package access implements the main request flow: lookup, reuse, pool
// claim, port acquisition with LRU recycle, creation, and persistence.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vncorchestrator/internal/eventbus"
	"vncorchestrator/internal/monitor"
	"vncorchestrator/internal/portalloc"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

// Replenisher is the narrow interface the Access Service needs from the
// warm pool manager: a non-blocking trigger, never awaited.
type Replenisher interface {
	TriggerReplenish()
}

type Config struct {
	VNCHost       string
	Image         string
	ContainerPort int
	PortMin       int
	PortMax       int
	AppName       string
	DefaultWidth  string
	DefaultHeight string
}

type Result struct {
	Action string // "reused", "pool", "created"
	URL    string
}

type Service struct {
	store   *store.Store
	runtime runtime.Adapter
	pool    Replenisher
	bus     eventbus.EventBus
	cfg     Config
	logger  *slog.Logger
}

func NewService(st *store.Store, rt runtime.Adapter, pool Replenisher, bus eventbus.EventBus, cfg Config, logger *slog.Logger) *Service {
	return &Service{store: st, runtime: rt, pool: pool, bus: bus, cfg: cfg, logger: logger.With(slog.String("component", "access"))}
}

// TriggerReplenish forwards to the warm pool manager so callers outside
// this package (the removal endpoints) can signal that a slot just freed
// up without reaching around the Access Service to hold a pool reference.
func (s *Service) TriggerReplenish() {
	s.pool.TriggerReplenish()
}

func (s *Service) publish(ctx context.Context, clientID string, eventType eventbus.EventType) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, clientID, eventbus.Event{Type: eventType, ClientID: clientID, Timestamp: time.Now().UTC()}); err != nil {
		s.logger.Warn("failed to publish lifecycle event", "client_id", clientID, "event", eventType, "error", err)
	}
}

func (s *Service) Access(ctx context.Context, clientID, width, height string) (Result, error) {
	start := time.Now()
	defer func() {
		monitor.AccessLatency.Observe(time.Since(start).Seconds())
	}()

	if clientID == "" {
		return Result{}, ErrMissingClientID
	}

	if width == "" {
		width = s.cfg.DefaultWidth
	}
	if height == "" {
		height = s.cfg.DefaultHeight
	}

	// Step 1: lookup / reuse-if-healthy.
	if rec, ok := s.store.FindByClient(clientID); ok {
		if s.runtime.IsHealthy(ctx, rec.ContainerID) {
			if err := s.store.TouchClient(clientID); err != nil {
				s.logger.Warn("failed to touch client record", "client_id", clientID, "error", err)
			}
			s.publish(ctx, clientID, eventbus.EventClientReused)
			monitor.AccessRequestsTotal.WithLabelValues("reused").Inc()
			s.refreshActiveGauge()
			return Result{Action: "reused", URL: s.url(rec.Port)}, nil
		}

		s.logger.Info("client container unhealthy, removing", "client_id", clientID, "container_id", shortID(rec.ContainerID))
		if err := s.runtime.Remove(ctx, rec.ContainerID); err != nil {
			s.logger.Warn("failed to remove dead container", "client_id", clientID, "error", err)
		}
		if err := s.store.RemoveByClient(clientID); err != nil {
			s.logger.Warn("failed to remove dead record", "client_id", clientID, "error", err)
		}
	}

	// Step 2: pool claim.
	if claimed, ok, err := s.store.ClaimPoolContainer(clientID, width, height); err != nil {
		s.logger.Warn("failed to claim pool container", "client_id", clientID, "error", err)
	} else if ok {
		if s.runtime.IsHealthy(ctx, claimed.ContainerID) {
			s.pool.TriggerReplenish()
			s.publish(ctx, clientID, eventbus.EventClientPoolClaim)
			monitor.AccessRequestsTotal.WithLabelValues("pool").Inc()
			return Result{Action: "pool", URL: s.url(claimed.Port)}, nil
		}

		s.logger.Info("claimed pool container was dead, removing", "client_id", clientID, "container_id", shortID(claimed.ContainerID))
		if err := s.runtime.Remove(ctx, claimed.ContainerID); err != nil {
			s.logger.Warn("failed to remove dead pool container", "error", err)
		}
		if err := s.store.RemoveByClient(clientID); err != nil {
			s.logger.Warn("failed to remove dead pool record", "client_id", clientID, "error", err)
		}
	}

	// Step 3: port acquisition, recycling the LRU victim on exhaustion.
	used := s.store.UsedPorts()
	port, ok := portalloc.Allocate(s.cfg.PortMin, s.cfg.PortMax, used)
	if !ok {
		victim, found := s.store.FindOldestAccessed()
		if !found {
			return Result{}, capacityExhaustedError(s.cfg.PortMax - s.cfg.PortMin + 1)
		}

		s.logger.Info("recycling LRU container", "client_id", victim.ClientID, "port", victim.Port)
		if err := s.runtime.Remove(ctx, victim.ContainerID); err != nil {
			s.logger.Warn("failed to remove LRU victim", "error", err)
		}
		if err := s.store.RemoveByClient(victim.ClientID); err != nil {
			s.logger.Warn("failed to remove LRU victim record", "error", err)
		}
		s.publish(ctx, victim.ClientID, eventbus.EventClientRecycled)
		port = victim.Port
	}

	// Step 4: create.
	name := "vnc_" + clientID
	info, err := s.runtime.Create(ctx, runtime.CreateOptions{
		Name:     name,
		HostPort: port,
		EnvVars:  s.envVars(width, height),
	})
	if err != nil {
		s.logger.Error("container creation failed", "client_id", clientID, "error", err)
		monitor.ContainerCreationErrors.Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	// Step 4b: wait for the kiosk to report healthy before redirecting a
	// client at it. A timeout is logged but not fatal; the container may
	// still come up and the next reuse check will catch it if it doesn't.
	if !s.runtime.WaitReady(ctx, info.ID, 0) {
		s.logger.Warn("container did not become ready before timeout", "client_id", clientID, "container_id", shortID(info.ID))
	}

	// Step 5: persist.
	if _, err := s.store.AddRecord(clientID, info.ID, name, port, width, height); err != nil {
		s.logger.Error("failed to persist new record", "client_id", clientID, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	// Step 6: return, trigger replenish.
	s.pool.TriggerReplenish()
	s.publish(ctx, clientID, eventbus.EventClientCreated)
	monitor.AccessRequestsTotal.WithLabelValues("created").Inc()
	s.refreshActiveGauge()
	return Result{Action: "created", URL: s.url(port)}, nil
}

// refreshActiveGauge recomputes the active-container gauge from the store
// rather than incrementing/decrementing it, since a single request can both
// remove a record (LRU recycle, dead reuse) and add one in the same flow.
func (s *Service) refreshActiveGauge() {
	records := s.store.LoadRecords()
	active := 0
	for _, r := range records {
		if !r.IsPool() {
			active++
		}
	}
	monitor.ActiveContainers.Set(float64(active))
}

func (s *Service) url(port int) string {
	return fmt.Sprintf("http://%s:%d", s.cfg.VNCHost, port)
}

func (s *Service) envVars(width, height string) []string {
	return []string{
		"APP_NAME=" + s.cfg.AppName,
		"DISPLAY_WIDTH=" + width,
		"DISPLAY_HEIGHT=" + height,
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

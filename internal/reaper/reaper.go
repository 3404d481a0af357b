// Package reaper periodically removes containers idle beyond a threshold,
// pool containers included.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"vncorchestrator/internal/eventbus"
	"vncorchestrator/internal/monitor"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

type Config struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

type Reaper struct {
	store   *store.Store
	runtime runtime.Adapter
	bus     eventbus.EventBus
	cfg     Config
	logger  *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(st *store.Store, rt runtime.Adapter, bus eventbus.EventBus, cfg Config, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:   st,
		runtime: rt,
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "reaper")),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the ticker loop in the background. The next tick is scheduled
// only after the current one completes.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the in-flight tick, if any,
// to finish.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reaper) tick(ctx context.Context) {
	records := r.store.LoadRecords()
	cutoff := time.Now().UTC().Add(-r.cfg.IdleTimeout)

	for _, rec := range records {
		if rec.LastAccessed.IsZero() {
			r.logger.Warn("record missing last_accessed_at, skipping", "client_id", rec.ClientID)
			continue
		}
		if rec.LastAccessed.Before(cutoff) {
			r.logger.Info("reaping idle container", "client_id", rec.ClientID, "container_id", shortID(rec.ContainerID), "port", rec.Port)
			if err := r.runtime.Remove(ctx, rec.ContainerID); err != nil {
				r.logger.Warn("failed to remove idle container", "client_id", rec.ClientID, "error", err)
			}
			if err := r.store.RemoveByClient(rec.ClientID); err != nil {
				r.logger.Warn("failed to remove idle record", "client_id", rec.ClientID, "error", err)
			}
			r.publish(ctx, rec.ClientID)
			monitor.ReaperRemovedTotal.Inc()
		}
	}
}

func (r *Reaper) publish(ctx context.Context, clientID string) {
	if r.bus == nil {
		return
	}
	event := eventbus.Event{Type: eventbus.EventClientReaped, ClientID: clientID, Timestamp: time.Now().UTC()}
	if err := r.bus.Publish(ctx, clientID, event); err != nil {
		r.logger.Warn("failed to publish reap event", "client_id", clientID, "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

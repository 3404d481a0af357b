// Package reconcile runs once at startup to align the persisted store with
// the live container runtime: dropping duplicates and dead records, and
// adopting orphaned containers the store doesn't know about.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vncorchestrator/internal/monitor"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

const poolNamePrefix = "vnc_pool_"
const orchestratedPrefix = "vnc_"

// Reconcile performs the one-shot startup alignment documented in the
// component design: keep healthy records, drop duplicates and dead ones,
// then adopt any orchestrated container the store didn't already account
// for.
func Reconcile(ctx context.Context, st *store.Store, rt runtime.Adapter, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "reconcile"))

	records := st.LoadRecords()
	live, err := rt.ListOrchestrated(ctx)
	if err != nil {
		return err
	}

	var cleaned []store.ContainerRecord
	seen := make(map[string]struct{})

	for _, rec := range records {
		if rec.ClientID != store.PoolClientID {
			if _, dup := seen[rec.ClientID]; dup {
				logger.Info("dropping duplicate record", "client_id", rec.ClientID)
				if err := rt.Remove(ctx, rec.ContainerID); err != nil {
					logger.Warn("failed to remove duplicate container", "client_id", rec.ClientID, "error", err)
				}
				delete(live, rec.ContainerName)
				monitor.ReconcileDroppedTotal.Inc()
				continue
			}
		}

		if rt.IsHealthy(ctx, rec.ContainerID) {
			cleaned = append(cleaned, rec)
			if rec.ClientID != store.PoolClientID {
				seen[rec.ClientID] = struct{}{}
			}
			delete(live, rec.ContainerName)
			continue
		}

		logger.Info("dropping dead record", "client_id", rec.ClientID, "container_name", rec.ContainerName)
		if err := rt.Remove(ctx, rec.ContainerID); err != nil {
			logger.Warn("failed to remove dead container", "client_id", rec.ClientID, "error", err)
		}
		monitor.ReconcileDroppedTotal.Inc()
	}

	now := time.Now().UTC()
	for name, info := range live {
		if !strings.HasPrefix(name, orchestratedPrefix) {
			continue
		}

		var clientID string
		if strings.HasPrefix(name, poolNamePrefix) {
			clientID = store.PoolClientID
		} else {
			clientID = strings.TrimPrefix(name, orchestratedPrefix)
			if _, already := seen[clientID]; already {
				continue
			}
			seen[clientID] = struct{}{}
		}

		logger.Info("adopting orphaned container", "client_id", clientID, "container_name", name, "port", info.Port)
		monitor.ReconcileAdoptedTotal.Inc()
		cleaned = append(cleaned, store.ContainerRecord{
			ClientID:      clientID,
			ContainerID:   info.ID,
			ContainerName: name,
			Port:          info.Port,
			CreatedAt:     now,
			LastAccessed:  now,
		})
	}

	return st.SaveRecords(cleaned)
}

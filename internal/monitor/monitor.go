package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool metrics
var (
	PoolIdleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "pool",
		Name:      "idle_count",
		Help:      "Current number of unassigned warm-pool containers",
	})

	PoolReplenishLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "pool",
		Name:      "replenish_latency_seconds",
		Help:      "Latency of a warm pool replenish run",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ContainerCreationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "pool",
		Name:      "container_creation_errors_total",
		Help:      "Total number of container creation errors",
	})
)

// Access metrics
var (
	AccessRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "access",
		Name:      "requests_total",
		Help:      "Total number of /access requests, partitioned by outcome",
	}, []string{"action"})

	AccessLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "access",
		Name:      "latency_seconds",
		Help:      "Latency of the Access Service flow",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	ActiveContainers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "access",
		Name:      "active_containers",
		Help:      "Number of currently assigned client containers",
	})
)

// Reaper metrics
var (
	ReaperRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "reaper",
		Name:      "removed_total",
		Help:      "Total number of containers removed for idleness",
	})
)

// Reconcile metrics
var (
	ReconcileAdoptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "reconcile",
		Name:      "adopted_total",
		Help:      "Total number of orphaned containers adopted at startup",
	})

	ReconcileDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vnc_orchestrator",
		Subsystem: "reconcile",
		Name:      "dropped_total",
		Help:      "Total number of duplicate or dead records dropped at startup",
	})
)

// Package orchestrator wires the core components into the single
// long-lived value cmd/server constructs: the state store, the runtime
// adapter, the access service, the warm pool manager, and the reaper.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"vncorchestrator/internal/access"
	"vncorchestrator/internal/api"
	"vncorchestrator/internal/config"
	"vncorchestrator/internal/eventbus"
	"vncorchestrator/internal/monitor"
	"vncorchestrator/internal/reaper"
	"vncorchestrator/internal/reconcile"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
	"vncorchestrator/internal/warmpool"
)

type Orchestrator struct {
	cfg    *config.Config
	deps   *dependencies
	logger *slog.Logger

	store    *store.Store
	runtime  runtime.Adapter
	access   *access.Service
	pool     *warmpool.Manager
	reaper   *reaper.Reaper
	eventBus eventbus.EventBus

	httpServer  *http.Server
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
}

// New constructs every long-lived object but does not start anything.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	deps, err := initDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.State.FilePath, logger)
	rt := runtime.NewDockerAdapter(deps.Docker, runtime.Config{
		Image:         cfg.VNC.Image,
		ContainerPort: cfg.VNC.ContainerPort,
		AppName:       cfg.VNC.AppName,
		DefaultWidth:  cfg.VNC.DefaultWidth,
		DefaultHeight: cfg.VNC.DefaultHeight,
		NetworkName:   cfg.Network.Name,
		NetworkSubnet: cfg.Network.Subnet,
	}, logger)

	bus := eventbus.NewRedisBus(deps.Redis, logger)

	poolMgr := warmpool.NewManager(st, rt, deps.AsynqClient, bus, warmpool.Config{
		Size:          cfg.Pool.Size,
		PortMin:       cfg.Ports.Min,
		PortMax:       cfg.Ports.Max,
		Image:         cfg.VNC.Image,
		ContainerPort: cfg.VNC.ContainerPort,
		AppName:       cfg.VNC.AppName,
		DefaultWidth:  cfg.VNC.DefaultWidth,
		DefaultHeight: cfg.VNC.DefaultHeight,
	}, logger)

	accessSvc := access.NewService(st, rt, poolMgr, bus, access.Config{
		VNCHost:       cfg.VNC.Host,
		Image:         cfg.VNC.Image,
		ContainerPort: cfg.VNC.ContainerPort,
		PortMin:       cfg.Ports.Min,
		PortMax:       cfg.Ports.Max,
		AppName:       cfg.VNC.AppName,
		DefaultWidth:  cfg.VNC.DefaultWidth,
		DefaultHeight: cfg.VNC.DefaultHeight,
	}, logger)

	idleReaper := reaper.New(st, rt, bus, reaper.Config{
		Interval:    cfg.Reaper.Interval,
		IdleTimeout: cfg.Reaper.IdleTimeout,
	}, logger)

	poolWorker := warmpool.NewWorker(poolMgr)
	asynqMux := asynq.NewServeMux()
	poolWorker.RegisterHandlers(asynqMux)

	asynqServer := asynq.NewServer(deps.AsynqRedis, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	handler := api.NewHandler(accessSvc, st, rt, bus, api.Config{PortMin: cfg.Ports.Min, PortMax: cfg.Ports.Max}, logger)
	router := api.NewRouter(handler)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	return &Orchestrator{
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
		store:       st,
		runtime:     rt,
		access:      accessSvc,
		pool:        poolMgr,
		reaper:      idleReaper,
		eventBus:    bus,
		httpServer:  httpServer,
		asynqServer: asynqServer,
		asynqMux:    asynqMux,
	}, nil
}

// Start reconciles persisted state against the live runtime, then launches
// the reaper, the asynq worker, the metrics sidecar, and the HTTP listener.
// It blocks until ctx is cancelled or a listener fails.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.logger.Info("running startup reconciliation")
	if err := reconcile.Reconcile(ctx, o.store, o.runtime, o.logger); err != nil {
		return err
	}

	o.reaper.Start(ctx)

	go func() {
		o.logger.Info("starting asynq worker", "concurrency", o.cfg.Worker.Concurrency)
		if err := o.asynqServer.Start(o.asynqMux); err != nil {
			o.logger.Error("asynq worker failed", "error", err)
		}
	}()

	go func() {
		if err := monitor.StartMetricsServer(ctx, o.cfg.Metrics.Addr, o.logger); err != nil {
			o.logger.Error("metrics server failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		o.logger.Info("starting HTTP server", "addr", o.cfg.Server.Addr)
		if err := o.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		o.logger.Info("shutdown signal received, draining")
	case err := <-errCh:
		return err
	}

	return o.Shutdown()
}

func (o *Orchestrator) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := o.httpServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Error("HTTP server shutdown error", "error", err)
	}

	o.reaper.Stop()
	o.asynqServer.Shutdown()
	o.deps.Close()

	o.logger.Info("orchestrator stopped gracefully")
	return nil
}

type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{l: l.With("component", "asynq")}
}

func (a *asynqLogger) Debug(args ...any) { a.l.Debug("", "msg", args) }
func (a *asynqLogger) Info(args ...any)  { a.l.Info("", "msg", args) }
func (a *asynqLogger) Warn(args ...any)  { a.l.Warn("", "msg", args) }
func (a *asynqLogger) Error(args ...any) { a.l.Error("", "msg", args) }
func (a *asynqLogger) Fatal(args ...any) { a.l.Error("FATAL", "msg", args) }

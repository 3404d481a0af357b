package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vncorchestrator/internal/config"
	"vncorchestrator/internal/orchestrator"
)

func main() {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, err := orchestrator.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise orchestrator", "error", err)
		os.Exit(1)
	}

	if err := orch.Start(ctx); err != nil {
		logger.Error("orchestrator error", "error", err)
		os.Exit(1)
	}
}

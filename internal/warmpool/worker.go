package warmpool

import (
	"context"

	"github.com/hibiken/asynq"
)

// Worker adapts Manager.Replenish to an asynq task handler.
type Worker struct {
	manager *Manager
}

func NewWorker(m *Manager) *Worker {
	return &Worker{manager: m}
}

// RegisterHandlers wires the replenish task onto the given mux.
func (w *Worker) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(ReplenishTaskType, w.handleReplenish)
}

func (w *Worker) handleReplenish(ctx context.Context, task *asynq.Task) error {
	return w.manager.Replenish(ctx)
}

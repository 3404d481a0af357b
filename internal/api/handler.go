package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vncorchestrator/internal/access"
	"vncorchestrator/internal/eventbus"
	"vncorchestrator/internal/runtime"
	"vncorchestrator/internal/store"
)

type Config struct {
	PortMin int
	PortMax int
}

type Handler struct {
	access  *access.Service
	store   *store.Store
	runtime runtime.Adapter
	bus     eventbus.EventBus
	cfg     Config
	logger  *slog.Logger
}

func NewHandler(svc *access.Service, st *store.Store, rt runtime.Adapter, bus eventbus.EventBus, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{access: svc, store: st, runtime: rt, bus: bus, cfg: cfg, logger: logger.With(slog.String("component", "api"))}
}

// Access implements GET /access?id=&width=&height=. Width/height are
// honored only when both are present; one without the other is a warning,
// not an error, and the service falls back to its configured defaults.
func (h *Handler) Access(c *gin.Context) {
	id := c.Query("id")
	width := c.Query("width")
	height := c.Query("height")

	if (width == "") != (height == "") {
		h.logger.Warn("width/height supplied as a partial pair, using defaults", "client_id", id, "width", width, "height", height)
		width, height = "", ""
	}

	if id == "" {
		respondError(c, http.StatusBadRequest, ErrMissingID)
		return
	}

	res, err := h.access.Access(c.Request.Context(), id, width, height)
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.Redirect(http.StatusFound, res.URL)
}

// Status implements GET /status.
func (h *Handler) Status(c *gin.Context) {
	records := h.store.LoadRecords()

	active := 0
	pool := 0
	out := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		if r.IsPool() {
			pool++
		} else {
			active++
		}
		out = append(out, RecordResponse{
			ClientID:      r.ClientID,
			ContainerID:   r.ContainerID,
			ContainerName: r.ContainerName,
			Port:          r.Port,
			CreatedAt:     formatTime(r.CreatedAt),
			LastAccessed:  formatTime(r.LastAccessed),
		})
	}

	c.JSON(http.StatusOK, StatusResponse{
		ActiveContainers: active,
		PoolContainers:   pool,
		MaxSlots:         h.cfg.PortMax - h.cfg.PortMin + 1,
		Records:          out,
	})
}

// Remove implements GET /remove?id=.
func (h *Handler) Remove(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondError(c, http.StatusBadRequest, ErrMissingID)
		return
	}

	rec, ok := h.store.FindByClient(id)
	if !ok {
		respondError(c, http.StatusNotFound, ErrRecordNotFound)
		return
	}

	if err := h.runtime.Remove(c.Request.Context(), rec.ContainerID); err != nil {
		h.logger.Warn("failed to remove container", "client_id", id, "error", err)
	}
	if err := h.store.RemoveByClient(id); err != nil {
		h.logger.Error("failed to remove record", "client_id", id, "error", err)
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	h.access.TriggerReplenish()

	c.JSON(http.StatusOK, RemoveResponse{
		Status:      "removed",
		ClientID:    id,
		ContainerID: rec.ContainerID,
		Port:        rec.Port,
	})
}

// RemoveAll implements GET /remove-all.
func (h *Handler) RemoveAll(c *gin.Context) {
	records := h.store.LoadRecords()

	removed := 0
	for _, r := range records {
		if err := h.runtime.Remove(c.Request.Context(), r.ContainerID); err != nil {
			h.logger.Warn("failed to remove container", "client_id", r.ClientID, "error", err)
		}
		if err := h.store.RemoveByClient(r.ClientID); err != nil {
			h.logger.Warn("failed to remove record", "client_id", r.ClientID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		h.access.TriggerReplenish()
	}

	c.JSON(http.StatusOK, RemoveAllResponse{Status: "ok", Removed: removed})
}

// Events implements GET /events?id=, streaming lifecycle notifications for
// one client over server-sent events until the client disconnects.
func (h *Handler) Events(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondError(c, http.StatusBadRequest, ErrMissingID)
		return
	}

	eventCh, err := h.bus.Subscribe(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("failed to disable write deadline for SSE", "client_id", id, "error", err)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to marshal SSE event", "client_id", id, "error", err)
				return false
			}
			c.SSEvent("message", string(data))
			return true

		case <-c.Request.Context().Done():
			return false

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", "")
			return true
		}
	})
}

// Health implements GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

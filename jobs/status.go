package jobs

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/leadboard/leadboard/internal/platform/httpx"
)

// QueueInspector reads queue counters. *asynq.Inspector satisfies it.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// SyncClock reports when the lead list was last refreshed.
type SyncClock interface {
	LastSync() time.Time
}

// SyncStatus is the body of GET /jobs/health.
type SyncStatus struct {
	Queue     string     `json:"queue"`
	Pending   int        `json:"pending"`
	Active    int        `json:"active"`
	Scheduled int        `json:"scheduled"`
	Retry     int        `json:"retry"`
	Failed    int        `json:"failed"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
}

// Handler exposes the lead sync status.
type Handler struct {
	inspector QueueInspector
	clock     SyncClock
	queue     string
	logger    *slog.Logger
}

// NewHandler constructs the status handler for queue. inspector and clock
// may be nil.
func NewHandler(inspector QueueInspector, clock SyncClock, queue string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == "" {
		queue = QueueDefault
	}
	return &Handler{inspector: inspector, clock: clock, queue: queue, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := SyncStatus{Queue: h.queue}
	if h.clock != nil {
		if last := h.clock.LastSync(); !last.IsZero() {
			status.LastSync = &last
		}
	}
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(h.queue)
		if err != nil {
			h.logger.Warn("lead sync status", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Sync unavailable", "queue broker unreachable")
			return
		}
		if info != nil {
			status.Pending = info.Pending
			status.Active = info.Active
			status.Scheduled = info.Scheduled
			status.Retry = info.Retry
			status.Failed = info.Archived
		}
	}
	httpx.JSON(w, http.StatusOK, status)
}

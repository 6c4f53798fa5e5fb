package expiry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stragan/stragan/internal/platform/httpx"
)

// ScanEnqueuer submits a background expiry scan.
type ScanEnqueuer interface {
	EnqueueExpiryScan(ctx context.Context, at time.Time) error
}

// Handler wires HTTP endpoints for expiry alerts.
type Handler struct {
	logger   *slog.Logger
	monitor  *Monitor
	enqueuer ScanEnqueuer
}

// NewHandler constructs expiry handler. The enqueuer may be nil when no queue
// is wired; refresh then only drops the cache.
func NewHandler(logger *slog.Logger, monitor *Monitor, enqueuer ScanEnqueuer) *Handler {
	return &Handler{logger: logger, monitor: monitor, enqueuer: enqueuer}
}

// MountRoutes registers expiry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expiry-alerts", h.listAlerts)
	r.Post("/expiry-alerts/refresh", h.refresh)
}

type alertResponse struct {
	BatchID         int64  `json:"batch_id"`
	IngredientID    int64  `json:"ingredient_id"`
	BatchNumber     string `json:"batch_number"`
	RemainingQty    string `json:"remaining_qty"`
	Location        string `json:"location"`
	ExpiryDate      string `json:"expiry_date"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	AlertLevel      string `json:"alert_level"`
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.monitor.Alerts(r.Context())
	if err != nil {
		h.logger.Error("list expiry alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp := alertResponse{
			BatchID:         a.Batch.ID,
			IngredientID:    a.Batch.IngredientID,
			BatchNumber:     a.Batch.BatchNumber,
			RemainingQty:    a.Batch.RemainingQty.String(),
			Location:        string(a.Batch.Location),
			DaysUntilExpiry: a.DaysUntilExpiry,
			AlertLevel:      string(a.Level),
		}
		if a.Batch.ExpiryDate != nil {
			resp.ExpiryDate = a.Batch.ExpiryDate.Format(time.DateOnly)
		}
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate expiry cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueExpiryScan(r.Context(), time.Now().UTC()); err != nil {
			h.logger.Error("enqueue expiry scan", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

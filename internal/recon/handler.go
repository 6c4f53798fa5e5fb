package recon

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stragan/stragan/internal/export"
	"github.com/stragan/stragan/internal/platform/httpx"
)

// Handler wires the reconciliation report endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs recon handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the report route under the day tree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{dayID}/reconciliation", h.getReport)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	dayID, err := strconv.ParseInt(chi.URLParam(r, "dayID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid day id")
		return
	}
	report, err := h.service.Reconcile(r.Context(), dayID)
	if err != nil {
		h.logger.Error("reconcile day", slog.Int64("day_id", dayID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		h.serveCSV(w, report)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) serveCSV(w http.ResponseWriter, report Report) {
	header := []string{"variant", "unit_price", "recorded_qty", "implied_qty", "recorded_value", "implied_value"}
	rows := make([][]string, 0, len(report.ByProduct)+2)
	for _, p := range report.ByProduct {
		rows = append(rows, []string{
			p.VariantName,
			export.PLN(p.UnitPrice),
			p.RecordedQty.String(),
			p.ImpliedQty.String(),
			export.PLN(p.RecordedValue),
			export.PLN(p.ImpliedValue),
		})
	}
	rows = append(rows,
		[]string{"recorded_total", export.PLN(report.RecordedTotal), "", "", "", ""},
		[]string{"calculated_total", export.PLN(report.CalculatedTotal), "", "", "", ""},
		[]string{"discrepancy", export.PLN(report.DiscrepancyPLN), report.DiscrepancyPercent.Round(2).String() + "%", "", "", ""},
	)
	filename := fmt.Sprintf("reconciliation-day-%d.csv", report.DayID)
	if err := export.ServeCSV(w, filename, header, rows); err != nil {
		h.logger.Error("write reconciliation csv", slog.Int64("day_id", report.DayID), slog.Any("error", err))
	}
}

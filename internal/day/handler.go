package day

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/export"
	"github.com/stragan/stragan/internal/platform/httpx"
)

var validate = validator.New()

// Handler wires HTTP endpoints for the day lifecycle.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs day handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers day routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.openDay)
	r.Get("/current", h.currentDay)
	r.Get("/{dayID}", h.getDay)
	r.Post("/{dayID}/close", h.closeDay)
	r.Get("/{dayID}/usage", h.usage)
}

type snapshotRequest struct {
	IngredientID int64           `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type openDayRequest struct {
	Date      string            `json:"date" validate:"required"`
	Snapshots []snapshotRequest `json:"opening_snapshots" validate:"required,min=1,dive"`
}

type closeDayRequest struct {
	Snapshots []snapshotRequest `json:"closing_snapshots" validate:"required,min=1,dive"`
	Notes     string            `json:"notes,omitempty"`
}

type dayResponse struct {
	ID       int64      `json:"id"`
	Date     string     `json:"date"`
	Status   string     `json:"status"`
	Notes    string     `json:"notes,omitempty"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (h *Handler) openDay(w http.ResponseWriter, r *http.Request) {
	var req openDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	opened, err := h.service.OpenDay(r.Context(), OpenDayInput{
		Date:      date,
		Snapshots: toSnapshotInputs(req.Snapshots),
	})
	if err != nil {
		h.logger.Error("open day", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDayResponse(opened))
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	dayID, err := pathID(r, "dayID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid day id")
		return
	}
	var req closeDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.CloseDay(r.Context(), CloseDayInput{
		DayID:     dayID,
		Snapshots: toSnapshotInputs(req.Snapshots),
		Notes:     req.Notes,
	})
	if err != nil {
		h.logger.Error("close day", slog.Int64("day_id", dayID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct {
		Day   dayResponse `json:"day"`
		Usage []UsageRow  `json:"usage"`
	}{Day: toDayResponse(result.Day), Usage: result.Usage})
}

func (h *Handler) getDay(w http.ResponseWriter, r *http.Request) {
	dayID, err := pathID(r, "dayID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid day id")
		return
	}
	record, err := h.service.GetDay(r.Context(), dayID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDayResponse(record))
}

func (h *Handler) currentDay(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.CurrentOpenDay(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDayResponse(record))
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	dayID, err := pathID(r, "dayID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid day id")
		return
	}
	rows, err := h.service.ComputeUsage(r.Context(), dayID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		h.serveUsageCSV(w, dayID, rows)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) serveUsageCSV(w http.ResponseWriter, dayID int64, rows []UsageRow) {
	header := []string{"ingredient", "opening", "deliveries_in", "transfers_in", "transfers_out", "spoilage_out", "closing", "usage", "expected_usage", "discrepancy_percent", "severity"}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.IngredientName,
			export.Quantity(row.Opening, row.UnitLabel),
			export.Quantity(row.DeliveriesIn, row.UnitLabel),
			export.Quantity(row.TransfersIn, row.UnitLabel),
			export.Quantity(row.TransfersOut, row.UnitLabel),
			export.Quantity(row.SpoilageOut, row.UnitLabel),
			export.Quantity(row.Closing, row.UnitLabel),
			export.Quantity(row.Usage, row.UnitLabel),
			export.Quantity(row.ExpectedUsage, row.UnitLabel),
			row.DiscrepancyPercent.StringFixed(2),
			string(row.Severity),
		})
	}
	filename := fmt.Sprintf("usage-day-%d.csv", dayID)
	if err := export.ServeCSV(w, filename, header, records); err != nil {
		h.logger.Error("write usage csv", slog.Int64("day_id", dayID), slog.Any("error", err))
	}
}

func toSnapshotInputs(in []snapshotRequest) []SnapshotInput {
	out := make([]SnapshotInput, 0, len(in))
	for _, s := range in {
		out = append(out, SnapshotInput{IngredientID: s.IngredientID, Quantity: s.Quantity})
	}
	return out
}

func toDayResponse(d DailyRecord) dayResponse {
	return dayResponse{
		ID:       d.ID,
		Date:     d.Date.Format(time.DateOnly),
		Status:   string(d.Status),
		Notes:    d.Notes,
		OpenedAt: d.OpenedAt,
		ClosedAt: d.ClosedAt,
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

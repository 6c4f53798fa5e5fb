package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/platform/httpx"
)

var validate = validator.New()

// Handler wires HTTP endpoints for recorded sales.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.recordSale)
	r.Get("/", h.listSales)
	r.Get("/{saleID}", h.getSale)
	r.Post("/{saleID}/void", h.voidSale)
}

type recordSaleRequest struct {
	VariantID int64           `json:"variant_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	DayID     int64           `json:"day_id,omitempty"`
	ShiftID   *int64          `json:"shift_id,omitempty"`
	ClientRef string          `json:"client_ref,omitempty" validate:"omitempty,uuid"`
}

type voidSaleRequest struct {
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes,omitempty"`
}

type saleResponse struct {
	ID               int64           `json:"id"`
	DailyRecordID    int64           `json:"daily_record_id"`
	ProductVariantID int64           `json:"product_variant_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Total            decimal.Decimal `json:"total"`
	ShiftID          *int64          `json:"shift_id,omitempty"`
	ClientRef        string          `json:"client_ref,omitempty"`
	VoidedAt         *time.Time      `json:"voided_at,omitempty"`
	VoidReason       string          `json:"void_reason,omitempty"`
	VoidNotes        string          `json:"void_notes,omitempty"`
	RecordedAt       time.Time       `json:"recorded_at"`
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req recordSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	recorded, err := h.service.RecordSale(r.Context(), RecordSaleInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		DayID:     req.DayID,
		ShiftID:   req.ShiftID,
		ClientRef: req.ClientRef,
	})
	if err != nil {
		h.logger.Error("record sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSaleResponse(recorded))
}

func (h *Handler) voidSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req voidSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	voided, err := h.service.VoidSale(r.Context(), VoidSaleInput{
		SaleID: saleID,
		Reason: req.Reason,
		Notes:  req.Notes,
	})
	if err != nil {
		h.logger.Error("void sale", slog.Int64("sale_id", saleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(voided))
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	dayID, err := strconv.ParseInt(r.URL.Query().Get("day_id"), 10, 64)
	if err != nil || dayID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "day_id query parameter required")
		return
	}
	listed, err := h.service.ListSales(r.Context(), dayID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]saleResponse, 0, len(listed))
	for _, sale := range listed {
		out = append(out, toSaleResponse(sale))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toSaleResponse(s RecordedSale) saleResponse {
	return saleResponse{
		ID:               s.ID,
		DailyRecordID:    s.DailyRecordID,
		ProductVariantID: s.ProductVariantID,
		Quantity:         s.Quantity,
		UnitPrice:        s.UnitPrice,
		Total:            s.Total(),
		ShiftID:          s.ShiftID,
		ClientRef:        s.ClientRef,
		VoidedAt:         s.VoidedAt,
		VoidReason:       s.VoidReason,
		VoidNotes:        s.VoidNotes,
		RecordedAt:       s.RecordedAt,
	}
}

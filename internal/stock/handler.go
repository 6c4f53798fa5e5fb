package stock

import (
	"fmt"
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

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/deliveries", h.handleDelivery)
	r.Post("/transfers", h.handleTransfer)
	r.Post("/spoilage", h.handleSpoilage)
	r.Get("/batches", h.listBatches)
}

type deliveryRequest struct {
	IngredientID int64           `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"required"`
	Destination  string          `json:"destination" validate:"required,oneof=STORAGE SHOP"`
	ExpiryDate   *string         `json:"expiry_date,omitempty"`
}

type transferRequest struct {
	IngredientID int64           `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"required"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
}

type spoilageRequest struct {
	IngredientID int64           `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"required"`
	Reason       string          `json:"reason" validate:"required"`
	Location     string          `json:"location,omitempty"`
}

type batchResponse struct {
	ID           int64           `json:"id"`
	IngredientID int64           `json:"ingredient_id"`
	BatchNumber  string          `json:"batch_number"`
	ExpiryDate   *string         `json:"expiry_date,omitempty"`
	InitialQty   decimal.Decimal `json:"initial_quantity"`
	RemainingQty decimal.Decimal `json:"remaining_quantity"`
	Location     string          `json:"location"`
	Active       bool            `json:"is_active"`
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var expiry *time.Time
	if req.ExpiryDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
			return
		}
		expiry = &parsed
	}
	batch, err := h.service.ApplyDelivery(r.Context(), DeliveryInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Destination:  Location(req.Destination),
		ExpiryDate:   expiry,
	})
	if err != nil {
		h.logger.Error("apply delivery", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := TransferInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		From:         LocationStorage,
		To:           LocationShop,
	}
	if req.From != "" {
		in.From = Location(req.From)
	}
	if req.To != "" {
		in.To = Location(req.To)
	}
	consumed, err := h.service.ApplyTransfer(r.Context(), in)
	if err != nil {
		h.logger.Error("apply transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consumed_batches": consumed})
}

func (h *Handler) handleSpoilage(w http.ResponseWriter, r *http.Request) {
	var req spoilageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := SpoilageInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
		Location:     LocationShop,
	}
	if req.Location != "" {
		in.Location = Location(req.Location)
	}
	consumed, err := h.service.ApplySpoilage(r.Context(), in)
	if err != nil {
		h.logger.Error("apply spoilage", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consumed_batches": consumed})
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	var ingredientID int64
	if raw := r.URL.Query().Get("ingredient_id"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ingredient_id")
			return
		}
		ingredientID = parsed
	}
	batches, err := h.service.ListActiveBatches(r.Context(), ingredientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func parsePositiveInt(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return id, nil
}

func toBatchResponse(b Batch) batchResponse {
	resp := batchResponse{
		ID:           b.ID,
		IngredientID: b.IngredientID,
		BatchNumber:  b.BatchNumber,
		InitialQty:   b.InitialQty,
		RemainingQty: b.RemainingQty,
		Location:     string(b.Location),
		Active:       b.Active,
	}
	if b.ExpiryDate != nil {
		formatted := b.ExpiryDate.Format("2006-01-02")
		resp.ExpiryDate = &formatted
	}
	return resp
}

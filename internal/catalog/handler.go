package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/platform/httpx"
)

var validate = validator.New()

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ingredients", h.listIngredients)
	r.Post("/ingredients", h.createIngredient)
	r.Patch("/ingredients/{id}", h.updateIngredient)
	r.Get("/variants", h.listVariants)
	r.Post("/variants", h.createVariant)
	r.Post("/variants/{id}/deactivate", h.deactivateVariant)
	r.Post("/variants/{id}/activate", h.activateVariant)
}

type ingredientRequest struct {
	Name      string `json:"name" validate:"required"`
	UnitType  string `json:"unit_type" validate:"required,oneof=WEIGHT COUNT"`
	UnitLabel string `json:"unit_label" validate:"required"`
}

type ingredientResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitType  string `json:"unit_type"`
	UnitLabel string `json:"unit_label"`
}

type recipeLineRequest struct {
	IngredientID    int64           `json:"ingredient_id" validate:"required"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit" validate:"required"`
	IsPrimary       bool            `json:"is_primary"`
}

type variantRequest struct {
	ProductID int64               `json:"product_id"`
	Name      string              `json:"name" validate:"required"`
	Price     decimal.Decimal     `json:"price" validate:"required"`
	Recipe    []recipeLineRequest `json:"recipe" validate:"required,min=1,dive"`
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var req ingredientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ing, err := h.service.CreateIngredient(r.Context(), CreateIngredientInput{
		Name:      req.Name,
		UnitType:  UnitType(req.UnitType),
		UnitLabel: req.UnitLabel,
	})
	if err != nil {
		h.logger.Error("create ingredient", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toIngredientResponse(ing))
}

func (h *Handler) updateIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ingredient id")
		return
	}
	var req struct {
		Name      *string `json:"name,omitempty"`
		UnitType  *string `json:"unit_type,omitempty"`
		UnitLabel *string `json:"unit_label,omitempty"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	in := UpdateIngredientInput{ID: id, Name: req.Name, UnitLabel: req.UnitLabel}
	if req.UnitType != nil {
		ut := UnitType(*req.UnitType)
		in.UnitType = &ut
	}
	ing, err := h.service.UpdateIngredient(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toIngredientResponse(ing))
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.service.ListIngredients(r.Context())
	if err != nil {
		h.logger.Error("list ingredients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]ingredientResponse, 0, len(ingredients))
	for _, ing := range ingredients {
		out = append(out, toIngredientResponse(ing))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateVariantInput{ProductID: req.ProductID, Name: req.Name, Price: req.Price}
	for _, line := range req.Recipe {
		in.Recipe = append(in.Recipe, RecipeLine{
			IngredientID:    line.IngredientID,
			QuantityPerUnit: line.QuantityPerUnit,
			IsPrimary:       line.IsPrimary,
		})
	}
	variant, err := h.service.CreateVariant(r.Context(), in)
	if err != nil {
		h.logger.Error("create variant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVariantResponse(variant))
}

func (h *Handler) listVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.service.ListActiveVariants(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, toVariantResponse(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deactivateVariant(w http.ResponseWriter, r *http.Request) {
	h.setVariantActive(w, r, false)
}

func (h *Handler) activateVariant(w http.ResponseWriter, r *http.Request) {
	h.setVariantActive(w, r, true)
}

func (h *Handler) setVariantActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	if err := h.service.SetVariantActive(r.Context(), id, active); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "is_active": active})
}

type recipeLineResponse struct {
	IngredientID    int64           `json:"ingredient_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	IsPrimary       bool            `json:"is_primary"`
}

type variantResponse struct {
	ID        int64                `json:"id"`
	ProductID int64                `json:"product_id,omitempty"`
	Name      string               `json:"name"`
	Price     decimal.Decimal      `json:"price"`
	Active    bool                 `json:"is_active"`
	Recipe    []recipeLineResponse `json:"recipe"`
}

func toIngredientResponse(ing Ingredient) ingredientResponse {
	return ingredientResponse{ID: ing.ID, Name: ing.Name, UnitType: string(ing.UnitType), UnitLabel: ing.UnitLabel}
}

func toVariantResponse(v ProductVariant) variantResponse {
	out := variantResponse{ID: v.ID, ProductID: v.ProductID, Name: v.Name, Price: v.Price, Active: v.Active}
	for _, line := range v.Recipe {
		out.Recipe = append(out.Recipe, recipeLineResponse{
			IngredientID:    line.IngredientID,
			QuantityPerUnit: line.QuantityPerUnit,
			IsPrimary:       line.IsPrimary,
		})
	}
	return out
}

package shift

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stragan/stragan/internal/platform/httpx"
)

var validate = validator.New()

// Handler wires HTTP endpoints for staff and shifts.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs shift handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/staff", h.createStaff)
	r.Get("/staff", h.listStaff)
	r.Post("/", h.openShift)
	r.Post("/{shiftID}/close", h.closeShift)
	r.Get("/{shiftID}", h.getShift)
}

type createStaffRequest struct {
	Name string `json:"name" validate:"required"`
	PIN  string `json:"pin" validate:"required,numeric,min=4,max=6"`
}

type openShiftRequest struct {
	StaffID int64  `json:"staff_id" validate:"required"`
	PIN     string `json:"pin" validate:"required"`
}

type staffResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}

type shiftResponse struct {
	ID       int64      `json:"id"`
	StaffID  int64      `json:"staff_id"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateStaff(r.Context(), CreateStaffInput{Name: req.Name, PIN: req.PIN})
	if err != nil {
		h.logger.Error("create staff", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, staffResponse{ID: created.ID, Name: created.Name, Active: created.Active})
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	listed, err := h.service.ListStaff(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]staffResponse, 0, len(listed))
	for _, s := range listed {
		out = append(out, staffResponse{ID: s.ID, Name: s.Name, Active: s.Active})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) openShift(w http.ResponseWriter, r *http.Request) {
	var req openShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	opened, err := h.service.OpenShift(r.Context(), req.StaffID, req.PIN)
	if err != nil {
		h.logger.Error("open shift", slog.Int64("staff_id", req.StaffID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toShiftResponse(opened))
}

func (h *Handler) closeShift(w http.ResponseWriter, r *http.Request) {
	shiftID, err := strconv.ParseInt(chi.URLParam(r, "shiftID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shift id")
		return
	}
	closed, err := h.service.CloseShift(r.Context(), shiftID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toShiftResponse(closed))
}

func (h *Handler) getShift(w http.ResponseWriter, r *http.Request) {
	shiftID, err := strconv.ParseInt(chi.URLParam(r, "shiftID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shift id")
		return
	}
	current, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toShiftResponse(current))
}

func toShiftResponse(s Shift) shiftResponse {
	return shiftResponse{ID: s.ID, StaffID: s.StaffID, OpenedAt: s.OpenedAt, ClosedAt: s.ClosedAt}
}

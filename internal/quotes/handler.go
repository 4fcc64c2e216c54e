package quotes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/garagehq/garagehq/internal/platform/httpx"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/internal/shared"
)

// SubmissionCounter counts accepted public submissions.
type SubmissionCounter interface {
	QuoteSubmitted()
}

// Handler wires HTTP endpoints for quote requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	counter   SubmissionCounter
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler. counter may be nil.
func NewHandler(logger *slog.Logger, service *Service, counter SubmissionCounter) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		counter:   counter,
		guard:     rbac.Guard{Logger: logger},
		validator: validator.New(),
	}
}

// MountPublicRoutes registers the public quote-form routes. The
// optional limiter wraps only the submission endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router, submitLimiter func(http.Handler) http.Handler) {
	r.Get("/services", h.serviceCatalog)
	if submitLimiter != nil {
		r.With(submitLimiter).Post("/quotes", h.submit)
	} else {
		r.Post("/quotes", h.submit)
	}
}

// MountAdminRoutes registers the sales follow-up routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.guard.Require(rbac.CapAccessSettings)).Get("/quotes", h.list)
	r.With(h.guard.Require(rbac.CapAccessSettings)).Get("/quotes/{id}", h.detail)
	r.With(h.guard.Require(rbac.CapAccessSettings)).Patch("/quotes/{id}/status", h.updateStatus)
}

type submitRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=80"`
	LastName     string `json:"last_name" validate:"required,max=80"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=6,max=20"`
	ServiceType  string `json:"service_type" validate:"required,oneof=reparation entretien tuning vente"`
	VehicleBrand string `json:"vehicle_brand" validate:"max=80"`
	VehicleModel string `json:"vehicle_model" validate:"max=80"`
	VehicleYear  int    `json:"vehicle_year" validate:"omitempty,min=1900,max=2100"`
	Mileage      int    `json:"mileage" validate:"min=0"`
	Message      string `json:"message" validate:"max=4000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending contacted closed"`
}

type listQuotesResponse struct {
	Quotes     []QuoteRequest    `json:"quotes"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) serviceCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"services": ServiceCatalog()})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	created, err := h.service.Submit(r.Context(), QuoteRequest{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		ServiceType:  ServiceType(req.ServiceType),
		VehicleBrand: req.VehicleBrand,
		VehicleModel: req.VehicleModel,
		VehicleYear:  req.VehicleYear,
		Mileage:      req.Mileage,
		Message:      req.Message,
	})
	if err != nil {
		h.logger.Error("submit quote", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if h.counter != nil {
		h.counter.QuoteSubmitted()
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	status := Status(q.Get("status"))
	if status != "" && !status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status filter")
		return
	}

	list, total, err := h.service.List(r.Context(), status, page, limit)
	if err != nil {
		h.logger.Error("list quotes", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if list == nil {
		list = []QuoteRequest{}
	}
	httpx.JSON(w, http.StatusOK, listQuotesResponse{
		Quotes:     list,
		Pagination: shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quote id")
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote request not found")
			return
		}
		h.logger.Error("get quote", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quote id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, Status(req.Status)); err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote request not found")
			return
		}
		h.logger.Error("update quote status", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

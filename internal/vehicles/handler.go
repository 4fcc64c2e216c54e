package vehicles

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

const maxImageUploadBytes = 10 << 20

// Handler wires HTTP endpoints for the vehicle catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     rbac.Guard{Logger: logger},
		validator: validator.New(),
	}
}

// MountPublicRoutes registers the showroom routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/vehicles", h.publicList)
	r.Get("/vehicles/{id}", h.detail)
}

// MountAdminRoutes registers capability-guarded management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.guard.Require(rbac.CapViewListings)).Get("/vehicles", h.adminList)
	r.With(h.guard.Require(rbac.CapViewListings)).Get("/vehicles/{id}", h.detail)
	r.With(h.guard.Require(rbac.CapAddListing)).Post("/vehicles", h.create)
	r.With(h.guard.Require(rbac.CapEditListing)).Put("/vehicles/{id}", h.update)
	r.With(h.guard.Require(rbac.CapEditListing)).Patch("/vehicles/{id}/sold", h.setSold)
	r.With(h.guard.Require(rbac.CapDeleteListing)).Delete("/vehicles/{id}", h.remove)
	r.With(h.guard.Require(rbac.CapEditListing)).Post("/vehicles/{id}/images", h.uploadImage)
	r.With(h.guard.Require(rbac.CapEditListing)).Delete("/vehicles/{vehicleID}/images/{id}", h.deleteImage)
}

func (h *Handler) publicList(w http.ResponseWriter, r *http.Request) {
	filters := filtersFromQuery(r)
	h.respondList(w, r, filters)
}

// adminList sees sold vehicles by default.
func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	filters := filtersFromQuery(r)
	filters.IncludeSold = true
	h.respondList(w, r, filters)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, filters ListFilters) {
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list vehicles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if list == nil {
		list = []Vehicle{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Vehicles:   list,
		Pagination: shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid vehicle id")
		return
	}
	v, images, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
			return
		}
		h.logger.Error("get vehicle", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if images == nil {
		images = []Image{}
	}
	httpx.JSON(w, http.StatusOK, detailResponse{Vehicle: v, Images: images})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), req.toVehicle())
	if err != nil {
		h.logger.Error("create vehicle", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid vehicle id")
		return
	}
	var req vehicleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Update(r.Context(), id, req.toVehicle()); err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
			return
		}
		h.logger.Error("update vehicle", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setSold(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid vehicle id")
		return
	}
	var req soldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.service.SetSold(r.Context(), id, req.IsSold); err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
			return
		}
		h.logger.Error("set sold", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid vehicle id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
			return
		}
		h.logger.Error("delete vehicle", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid vehicle id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image exceeds the upload limit or is malformed")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	img, err := h.service.UploadImage(r.Context(), id, header.Filename, contentType, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrVehicleNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
		case errors.Is(err, ErrUnsupportedImage):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unsupported image format")
		default:
			h.logger.Error("upload image", slog.Int64("vehicle_id", id), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, img)
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid image id")
		return
	}
	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		if errors.Is(err, ErrImageNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "image not found")
			return
		}
		h.logger.Error("delete image", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

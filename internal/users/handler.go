package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/garagehq/garagehq/internal/auth"
	"github.com/garagehq/garagehq/internal/platform/httpx"
	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/rbac"
)

// Handler wires HTTP endpoints for user management.
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

// MountRoutes registers user management routes. All of them require the
// manage-users capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.CapManageUsers))
		r.Get("/users", h.list)
		r.Patch("/users/{id}/access", h.updateAccess)
		r.Delete("/users/{id}", h.remove)
		r.Get("/invites", h.invitations)
		r.Post("/invites", h.invite)
		r.Post("/invites/{id}/repair", h.repair)
	})
}

type inviteRequest struct {
	Email       string          `json:"email" validate:"required,email"`
	Role        string          `json:"role" validate:"required"`
	Permissions map[string]bool `json:"permissions"`
}

type accessRequest struct {
	Role        string          `json:"role" validate:"required"`
	Permissions map[string]bool `json:"permissions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	custom, err := parsePermissionSet(req.Permissions)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.Invite(r.Context(), req.Email, role, custom, auth.CurrentAccountID(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			httpx.Problem(w, http.StatusConflict, "Duplicate", "an account already exists for this email")
		default:
			h.logger.Error("invite user", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	status := http.StatusCreated
	if inv.Status == StatusProfilePending {
		// Account exists but the profile write failed. Surface the
		// partial state so the caller can trigger a repair.
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, inv)
}

func (h *Handler) invitations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Invitations(r.Context())
	if err != nil {
		h.logger.Error("list invitations", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invitations": list})
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invitation id")
		return
	}
	inv, err := h.service.Repair(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvitationNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "invitation not found")
		case errors.Is(err, ErrInvitationSettled):
			httpx.Problem(w, http.StatusConflict, "Conflict", "invitation is not pending repair")
		case errors.Is(err, profiles.ErrWriteForbidden):
			httpx.Problem(w, http.StatusForbidden, "Profile Write Forbidden",
				"the profile store's access policy rejected the write; check its row-level security configuration")
		default:
			h.logger.Error("repair invitation", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateAccess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req accessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	custom, err := parsePermissionSet(req.Permissions)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.UpdateAccess(r.Context(), id, role, custom); err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("update access", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	if err := h.service.Remove(r.Context(), id, auth.CurrentAccountID(r)); err != nil {
		switch {
		case errors.Is(err, profiles.ErrSelfDeletion):
			httpx.Problem(w, http.StatusConflict, "Conflict", "you cannot remove your own account")
		case errors.Is(err, profiles.ErrProfileNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		default:
			h.logger.Error("remove user", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.NoContent(w)
}

func parsePermissionSet(raw map[string]bool) (rbac.PermissionSet, error) {
	if raw == nil {
		return nil, nil
	}
	set := make(rbac.PermissionSet, len(raw))
	for key, allowed := range raw {
		c := rbac.Capability(key)
		if !c.Valid() {
			return nil, fmt.Errorf("users: unknown capability %q", key)
		}
		set[c] = allowed
	}
	return set, nil
}

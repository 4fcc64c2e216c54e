package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/garagehq/garagehq/internal/platform/httpx"
	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	profiles       *profiles.Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	broker         *rbac.Broker
	middleware     Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, profileService *profiles.Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, broker *rbac.Broker) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		profiles:       profileService,
		sessionManager: sessions,
		csrfManager:    csrf,
		broker:         broker,
		middleware:     Middleware{Profiles: profileService, Logger: logger},
		validator:      validator.New(),
	}
}

// Middleware exposes the auth middleware for other route groups.
func (h *Handler) Middleware() Middleware {
	return h.middleware
}

// MountRoutes registers auth routes on provided router. The login
// limiter throttles credential guessing without touching the rest of
// the admin surface.
func (h *Handler) MountRoutes(r chi.Router, loginLimiter func(http.Handler) http.Handler) {
	r.Get("/csrf", h.csrfToken)
	if loginLimiter != nil {
		r.With(loginLimiter).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
	r.Post("/signup", h.handleSignUp)
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.RequireAuth)
		r.Get("/me", h.handleMe)
	})
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	AccountID   string             `json:"account_id"`
	Email       string             `json:"email"`
	Role        rbac.Role          `json:"role"`
	Permissions rbac.PermissionSet `json:"permissions"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name"`
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password is incorrect")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.establishSession(w, r, account)
}

// establishSession binds the session to the account, resolves the
// profile and answers with the effective permission snapshot. Profile
// resolution failure keeps the caller signed out.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, account *Account) {
	res, err := h.profiles.Resolve(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, profiles.ErrWriteForbidden) {
			httpx.Problem(w, http.StatusForbidden, "Profile Write Forbidden",
				"your profile could not be created: the profile store's access policy rejected the write; check its row-level security configuration")
			return
		}
		h.logger.Error("resolve profile", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Profile Resolution Failed", "your profile could not be loaded, try again later")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Rotate the session ID before raising its privilege level so a
	// pre-login ID can never name an authenticated session.
	h.sessionManager.Renew(r.Context(), sess)
	sess.SetUser(account.ID.String())
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, account, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.broker.Publish(rbac.SessionEvent{Kind: rbac.EventSignedIn, AccountID: account.ID})

	eff := res.Profile.Effective(h.profiles.LegacyRole())
	httpx.JSON(w, http.StatusOK, sessionResponse{
		AccountID:   account.ID.String(),
		Email:       account.Email,
		Role:        eff.Role,
		Permissions: eff.Permissions,
		FirstName:   res.Profile.FirstName,
		LastName:    res.Profile.LastName,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if sess.User() != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				// Provider-side failures never block logout.
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	h.broker.Publish(rbac.SessionEvent{Kind: rbac.EventSignedOut})
	httpx.NoContent(w)
}

// handleSignUp is the bootstrap path: it creates an identity-provider
// account plus its profile and signs the caller in immediately.
func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "an account already exists for this email")
			return
		}
		h.logger.Error("sign up", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.establishSession(w, r, account)
}

// HandleLoginForTest exposes the login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID := CurrentAccountID(r)
	account, err := h.service.FindAccount(r.Context(), accountID)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "account no longer exists")
		return
	}

	ev := rbac.EvaluatorFromContext(r.Context())
	if ev == nil || ev.State() != rbac.StateResolved {
		detail := "permission resolution failed"
		if ev != nil && ev.Err() != nil {
			detail = ev.Err().Error()
		}
		httpx.Problem(w, http.StatusForbidden, "Permission Resolution Failed", detail)
		return
	}

	res, err := h.profiles.Resolve(r.Context(), accountID)
	if err != nil {
		httpx.Problem(w, http.StatusBadGateway, "Profile Resolution Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		AccountID:   accountID.String(),
		Email:       account.Email,
		Role:        ev.Role(),
		Permissions: ev.Permissions(),
		FirstName:   res.Profile.FirstName,
		LastName:    res.Profile.LastName,
	})
}

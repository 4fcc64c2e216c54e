package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/garagehq/garagehq/internal/auth"
	"github.com/garagehq/garagehq/internal/observability"
	"github.com/garagehq/garagehq/internal/quotes"
	"github.com/garagehq/garagehq/internal/shared"
	"github.com/garagehq/garagehq/internal/users"
	"github.com/garagehq/garagehq/internal/vehicles"
	"github.com/garagehq/garagehq/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	VehiclesHandler *vehicles.Handler
	QuotesHandler   *quotes.Handler
	UsersHandler    *users.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi router for the API server.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	// Public showroom API. Quote submissions get a tighter per-IP limit
	// than the global one.
	r.Route("/api", func(r chi.Router) {
		params.VehiclesHandler.MountPublicRoutes(r)
		params.QuotesHandler.MountPublicRoutes(r,
			httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	})

	// Admin API: CSRF on writes, session auth past the entry points.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(CSRFMiddleware(mwConfig))
		params.AuthHandler.MountRoutes(r,
			httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Group(func(r chi.Router) {
			r.Use(params.AuthHandler.Middleware().RequireAuth)
			params.VehiclesHandler.MountAdminRoutes(r)
			params.QuotesHandler.MountAdminRoutes(r)
			params.UsersHandler.MountRoutes(r)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}

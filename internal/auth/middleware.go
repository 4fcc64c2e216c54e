package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/garagehq/garagehq/internal/platform/httpx"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/internal/shared"
)

// Middleware attaches a permission evaluator for the session identity to
// every authenticated request.
type Middleware struct {
	Profiles rbac.ProfileSource
	Logger   *slog.Logger
}

// RequireAuth rejects requests without an authenticated session and
// resolves the identity's effective permissions into the request
// context. Resolution failures do not reject here: the evaluator is
// stored in its error state and the access guard fails closed, so the
// interface can still surface the failure description.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in to access the back-office")
			return
		}
		accountID, err := uuid.Parse(sess.User())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("malformed account id in session", slog.String("value", sess.User()))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid session")
			return
		}

		ev := rbac.NewEvaluator(m.Profiles)
		ev.HandleEvent(r.Context(), rbac.SessionEvent{Kind: rbac.EventSignedIn, AccountID: accountID})

		ctx := rbac.ContextWithEvaluator(r.Context(), ev)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentAccountID extracts the authenticated identity from the request,
// uuid.Nil when unauthenticated.
func CurrentAccountID(r *http.Request) uuid.UUID {
	if ev := rbac.EvaluatorFromContext(r.Context()); ev != nil {
		return ev.AccountID()
	}
	return uuid.Nil
}

package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/garagehq/garagehq/internal/platform/httpx"
)

type evaluatorContextKey struct{}

// ContextWithEvaluator stores the request-scoped evaluator in context.
func ContextWithEvaluator(ctx context.Context, ev *Evaluator) context.Context {
	return context.WithValue(ctx, evaluatorContextKey{}, ev)
}

// EvaluatorFromContext extracts the evaluator from context, nil if absent.
func EvaluatorFromContext(ctx context.Context) *Evaluator {
	ev, _ := ctx.Value(evaluatorContextKey{}).(*Evaluator)
	return ev
}

// Guard gates admin routes behind one named capability. Every deny path
// is fail-closed: no evaluator, unresolved state and resolution errors
// all refuse access.
type Guard struct {
	Logger *slog.Logger
}

// Require allows the request through only when the evaluator in context
// grants the capability; otherwise it responds with a restricted-access
// problem.
func (g Guard) Require(c Capability) func(http.Handler) http.Handler {
	return g.RequireWithFallback(c, nil)
}

// RequireWithFallback behaves like Require but delegates denied requests
// to the fallback handler instead of the generic restricted notice.
func (g Guard) RequireWithFallback(c Capability, fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ev := EvaluatorFromContext(r.Context())
			if ev == nil {
				httpx.Problem(w, http.StatusForbidden, "Access Restricted", "authentication required")
				return
			}
			switch ev.State() {
			case StateError:
				detail := "permission resolution failed"
				if err := ev.Err(); err != nil {
					detail = err.Error()
				}
				if g.Logger != nil {
					g.Logger.Error("permission resolution failed", slog.Any("error", ev.Err()), slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Permission Resolution Failed", detail)
				return
			case StateResolved:
				if ev.HasCapability(c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if fallback != nil {
				fallback.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Access Restricted", "you do not have access to this section")
		})
	}
}

// RequireMinimumRole allows the request through only when the resolved
// role carries at least the given privilege.
func (g Guard) RequireMinimumRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ev := EvaluatorFromContext(r.Context())
			if ev == nil || !ev.HasMinimumRole(min) {
				httpx.Problem(w, http.StatusForbidden, "Access Restricted", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

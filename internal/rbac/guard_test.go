package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func resolvedEvaluator(t *testing.T, role Role, perms PermissionSet) *Evaluator {
	t.Helper()
	id := uuid.New()
	src := &stubSource{res: map[uuid.UUID]Resolution{id: {Role: role, Permissions: perms}}}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: id})
	return ev
}

func serveGuarded(ev *Evaluator, mw func(http.Handler) http.Handler) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("protected"))
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/vehicles", nil)
	if ev != nil {
		req = req.WithContext(ContextWithEvaluator(req.Context(), ev))
	}
	res := httptest.NewRecorder()
	mw(next).ServeHTTP(res, req)
	return res
}

func TestGuardAllowsGrantedCapability(t *testing.T) {
	ev := resolvedEvaluator(t, RoleEditor, Defaults(RoleEditor))
	res := serveGuarded(ev, Guard{}.Require(CapEditListing))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	if !strings.Contains(res.Body.String(), "protected") {
		t.Fatal("protected content not rendered")
	}
}

func TestGuardDeniesMissingCapability(t *testing.T) {
	ev := resolvedEvaluator(t, RoleViewer, Defaults(RoleViewer))
	res := serveGuarded(ev, Guard{}.Require(CapDeleteListing))
	if res.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Access Restricted") {
		t.Fatalf("expected restricted notice, got %s", res.Body.String())
	}
}

func TestGuardDeniesWithoutEvaluator(t *testing.T) {
	res := serveGuarded(nil, Guard{}.Require(CapViewListings))
	if res.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.Code)
	}
}

func TestGuardReportsResolutionError(t *testing.T) {
	src := &stubSource{err: errors.New("profile write forbidden")}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: uuid.New()})

	res := serveGuarded(ev, Guard{}.Require(CapViewListings))
	if res.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.Code)
	}
	if !strings.Contains(res.Body.String(), "profile write forbidden") {
		t.Fatalf("error notice should carry the failure description, got %s", res.Body.String())
	}
}

func TestGuardFallbackRendersOnDeny(t *testing.T) {
	ev := resolvedEvaluator(t, RoleViewer, Defaults(RoleViewer))
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("read-only view"))
	})
	res := serveGuarded(ev, Guard{}.RequireWithFallback(CapAddListing, fallback))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from fallback", res.Code)
	}
	if !strings.Contains(res.Body.String(), "read-only view") {
		t.Fatal("fallback content not rendered")
	}
}

func TestRequireMinimumRole(t *testing.T) {
	admin := resolvedEvaluator(t, RoleAdministrator, Defaults(RoleAdministrator))
	viewer := resolvedEvaluator(t, RoleViewer, Defaults(RoleViewer))

	if res := serveGuarded(admin, Guard{}.RequireMinimumRole(RoleEditor)); res.Code != http.StatusOK {
		t.Fatalf("administrator should satisfy minimum editor, got %d", res.Code)
	}
	if res := serveGuarded(viewer, Guard{}.RequireMinimumRole(RoleEditor)); res.Code != http.StatusForbidden {
		t.Fatalf("viewer should not satisfy minimum editor, got %d", res.Code)
	}
}

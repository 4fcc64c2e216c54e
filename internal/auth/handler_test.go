package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/garagehq/garagehq/internal/auth"
	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/internal/shared"
	_ "github.com/garagehq/garagehq/testing"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	if s.account == nil || s.account.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) CreateAccount(ctx context.Context, email, passwordHash string) (*auth.Account, error) {
	if s.account != nil && s.account.Email == email {
		return nil, auth.ErrEmailTaken
	}
	acc := &auth.Account{ID: uuid.New(), Email: email, PasswordHash: passwordHash, IsActive: true}
	s.account = acc
	return acc, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, accountID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubProfileRepo struct {
	byID      map[uuid.UUID]*profiles.Profile
	insertErr error
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{byID: make(map[uuid.UUID]*profiles.Profile)}
}

func (s *stubProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*profiles.Profile, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, profiles.ErrProfileNotFound
}

func (s *stubProfileRepo) Insert(ctx context.Context, p profiles.Profile) (*profiles.Profile, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	stored := p
	s.byID[p.ID] = &stored
	return &stored, nil
}

func (s *stubProfileRepo) List(ctx context.Context) ([]profiles.Profile, error) {
	out := make([]profiles.Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubProfileRepo) UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error {
	return nil
}

func (s *stubProfileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.byID, id)
	return nil
}

func policyRejection() error {
	return &pgconn.PgError{Code: "42501", Message: "permission denied for table profiles"}
}

func newAuthHandler(t *testing.T, repo auth.Repository, profileRepo profiles.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profileService := profiles.NewService(profileRepo, rbac.RoleViewer, logger)
	handler := auth.NewHandler(logger, auth.NewService(repo), profileService, sessionManager, csrfManager, rbac.NewBroker())
	return handler, sessionManager
}

func withSession(t *testing.T, sessionManager *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hashed)
}

func TestLoginInvalidCredentials(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "admin@garage.test", PasswordHash: hashPassword(t, "correctpass"), IsActive: true}
	handler, sessionManager := newAuthHandler(t, &stubRepo{account: account}, newStubProfileRepo())

	body := strings.NewReader(`{"email":"admin@garage.test","password":"wrongpass99"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid Credentials") {
		t.Fatalf("expected problem title in body, got %s", res.Body.String())
	}
}

func TestLoginLazyCreatesProfileAndReturnsPermissions(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "admin@garage.test", PasswordHash: hashPassword(t, "correctpass"), IsActive: true}
	profileRepo := newStubProfileRepo()
	handler, sessionManager := newAuthHandler(t, &stubRepo{account: account}, profileRepo)

	body := strings.NewReader(`{"email":"admin@garage.test","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.User() != account.ID.String() {
		t.Fatalf("expected session bound to account, got %q", sess.User())
	}
	if _, ok := profileRepo.byID[account.ID]; !ok {
		t.Fatalf("expected profile created on first login")
	}

	var got struct {
		Role        rbac.Role          `json:"role"`
		Permissions rbac.PermissionSet `json:"permissions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Role != rbac.RoleViewer {
		t.Fatalf("expected fallback viewer role, got %s", got.Role)
	}
	if got.Permissions.Allows(rbac.CapDeleteListing) {
		t.Fatalf("viewer must not delete listings")
	}
	if !got.Permissions.Allows(rbac.CapViewListings) {
		t.Fatalf("viewer must view listings")
	}
}

func TestLoginRotatesSessionID(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "admin@garage.test", PasswordHash: hashPassword(t, "correctpass"), IsActive: true}
	handler, sessionManager := newAuthHandler(t, &stubRepo{account: account}, newStubProfileRepo())

	body := strings.NewReader(`{"email":"admin@garage.test","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sessionManager, req)
	anonymousID := sess.ID

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.ID == anonymousID {
		t.Fatal("session ID must rotate when the session gains a user")
	}
	if sess.User() != account.ID.String() {
		t.Fatalf("expected session bound to account, got %q", sess.User())
	}
}

func TestLoginProfileWriteForbiddenKeepsCallerSignedOut(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "admin@garage.test", PasswordHash: hashPassword(t, "correctpass"), IsActive: true}
	profileRepo := newStubProfileRepo()
	profileRepo.insertErr = policyRejection()
	handler, sessionManager := newAuthHandler(t, &stubRepo{account: account}, profileRepo)

	body := strings.NewReader(`{"email":"admin@garage.test","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "access policy") {
		t.Fatalf("expected actionable policy detail, got %s", res.Body.String())
	}
	if sess.User() != "" {
		t.Fatalf("session must not be bound when resolution fails")
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "admin@garage.test", PasswordHash: hashPassword(t, "correctpass"), IsActive: true}
	handler, sessionManager := newAuthHandler(t, &stubRepo{account: account}, newStubProfileRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req, sess := withSession(t, sessionManager, req)
	sess.SetUser(account.ID.String())

	res := httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

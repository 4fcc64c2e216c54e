package profiles_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/rbac"
	_ "github.com/garagehq/garagehq/testing"
)

type memRepo struct {
	rows      map[uuid.UUID]profiles.Profile
	inserts   int
	insertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]profiles.Profile)}
}

func (m *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*profiles.Profile, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, profiles.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memRepo) Insert(ctx context.Context, p profiles.Profile) (*profiles.Profile, error) {
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if _, ok := m.rows[p.ID]; ok {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	m.rows[p.ID] = p
	return &p, nil
}

func (m *memRepo) List(ctx context.Context) ([]profiles.Profile, error) {
	out := make([]profiles.Profile, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, nil
}

func (m *memRepo) UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error {
	p, ok := m.rows[id]
	if !ok {
		return profiles.ErrProfileNotFound
	}
	p.Role = &role
	p.CustomPermissions = custom
	m.rows[id] = p
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.rows[id]; !ok {
		return profiles.ErrProfileNotFound
	}
	delete(m.rows, id)
	return nil
}

func TestResolveCreatesProfileOnce(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)
	id := uuid.New()

	first, err := svc.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.AdminEligible)
	require.NotNil(t, first.Profile.Role)
	assert.Equal(t, rbac.RoleViewer, *first.Profile.Role)
	assert.Equal(t, 1, repo.inserts)

	second, err := svc.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, 1, repo.inserts, "second resolve must not write")
}

func TestResolveLegacyAdministratorSetting(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleAdministrator, nil)

	res, err := svc.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, res.Profile.Role)
	assert.Equal(t, rbac.RoleAdministrator, *res.Profile.Role)

	eff := res.Profile.Effective(svc.LegacyRole())
	assert.True(t, eff.Permissions.Allows(rbac.CapManageUsers))
}

func TestResolvePolicyRejectionIsDistinct(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = &pgconn.PgError{Code: "42501", Message: "permission denied for table profiles"}
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)

	_, err := svc.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, profiles.ErrWriteForbidden)
}

func TestResolveGenericFailure(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = &pgconn.PgError{Code: "08006", Message: "connection failure"}
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)

	_, err := svc.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, profiles.ErrResolution)
	require.NotErrorIs(t, err, profiles.ErrWriteForbidden)
}

func TestEffectiveCustomOverrideWins(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)
	id := uuid.New()
	role := rbac.RoleEditor
	repo.rows[id] = profiles.Profile{
		ID:   id,
		Role: &role,
		CustomPermissions: rbac.PermissionSet{
			rbac.CapViewListings:  true,
			rbac.CapDeleteListing: true,
		},
	}

	eff, err := svc.EffectiveFor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleEditor, eff.Role)
	assert.True(t, eff.Permissions.Allows(rbac.CapDeleteListing), "custom set grants delete despite editor default")
	assert.False(t, eff.Permissions.Allows(rbac.CapAddListing), "custom set replaces the default, no merge")
}

func TestEffectiveMissingRoleUsesLegacy(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)
	id := uuid.New()
	repo.rows[id] = profiles.Profile{ID: id} // legacy row, no role recorded

	eff, err := svc.EffectiveFor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleViewer, eff.Role)
	assert.False(t, eff.Permissions.Allows(rbac.CapAddListing))
}

func TestDeleteForbidsSelf(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)
	me := uuid.New()
	other := uuid.New()
	repo.rows[me] = profiles.Profile{ID: me}
	repo.rows[other] = profiles.Profile{ID: other}

	err := svc.Delete(context.Background(), me, me)
	require.ErrorIs(t, err, profiles.ErrSelfDeletion)

	require.NoError(t, svc.Delete(context.Background(), other, me))
}

func TestCreateInvitedCarriesAudit(t *testing.T) {
	repo := newMemRepo()
	svc := profiles.NewService(repo, rbac.RoleViewer, nil)
	inviter := uuid.New()
	invitee := uuid.New()

	p, err := svc.CreateInvited(context.Background(), invitee, rbac.RoleCollaborator, nil, inviter)
	require.NoError(t, err)
	require.NotNil(t, p.Role)
	assert.Equal(t, rbac.RoleCollaborator, *p.Role)
	require.NotNil(t, p.InvitedBy)
	assert.Equal(t, inviter, *p.InvitedBy)

	// No custom set: effective permissions equal the collaborator defaults.
	eff := p.Effective(rbac.RoleViewer)
	assert.Equal(t, rbac.Defaults(rbac.RoleCollaborator), eff.Permissions)
}

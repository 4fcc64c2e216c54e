package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/garagehq/garagehq/internal/rbac"
)

// Resolution is the outcome of resolving one identity's profile.
type Resolution struct {
	Profile Profile
	// Created is true when this call performed the lazy create.
	Created bool
	// AdminEligible is true when the identity may enter the admin
	// back-office at all; individual sections are still gated per
	// capability by the access guard.
	AdminEligible bool
}

// Service resolves profiles for authenticated identities, creating a
// minimal row on first login.
type Service struct {
	repo       Repository
	legacyRole rbac.Role
	logger     *slog.Logger
}

// NewService constructs a Service. legacyRole decides what a profile
// with no recorded role resolves to; it also becomes the recorded role
// of lazily created rows.
func NewService(repo Repository, legacyRole rbac.Role, logger *slog.Logger) *Service {
	if !legacyRole.Valid() {
		legacyRole = rbac.RoleViewer
	}
	return &Service{repo: repo, legacyRole: legacyRole, logger: logger}
}

// Resolve returns the identity's profile, lazily creating a minimal one
// if absent. Idempotent once the row exists: repeated calls perform no
// further writes. The caller must have authenticated the identity.
func (s *Service) Resolve(ctx context.Context, accountID uuid.UUID) (Resolution, error) {
	profile, err := s.repo.GetByID(ctx, accountID)
	if err == nil {
		return Resolution{Profile: *profile, AdminEligible: true}, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return Resolution{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	role := s.legacyRole
	created, err := s.repo.Insert(ctx, Profile{
		ID:        accountID,
		FirstName: "Admin",
		LastName:  "User",
		Role:      &role,
	})
	if err != nil {
		if IsUniqueViolation(err) {
			// Lost a race with a concurrent first login; the row exists now.
			existing, getErr := s.repo.GetByID(ctx, accountID)
			if getErr != nil {
				return Resolution{}, fmt.Errorf("%w: %v", ErrResolution, getErr)
			}
			return Resolution{Profile: *existing, AdminEligible: true}, nil
		}
		if IsPolicyRejection(err) {
			return Resolution{}, fmt.Errorf("%w: %v", ErrWriteForbidden, err)
		}
		return Resolution{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	if s.logger != nil {
		s.logger.Info("profile created on first login", slog.String("account_id", accountID.String()), slog.String("role", string(role)))
	}
	return Resolution{Profile: *created, Created: true, AdminEligible: true}, nil
}

// EffectiveFor resolves the identity and derives its effective role and
// permission set. Implements rbac.ProfileSource.
func (s *Service) EffectiveFor(ctx context.Context, accountID uuid.UUID) (rbac.Resolution, error) {
	res, err := s.Resolve(ctx, accountID)
	if err != nil {
		return rbac.Resolution{}, err
	}
	return res.Profile.Effective(s.legacyRole), nil
}

// CreateInvited records a profile for a freshly invited collaborator.
func (s *Service) CreateInvited(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet, invitedBy uuid.UUID) (*Profile, error) {
	p := Profile{
		ID:                id,
		FirstName:         "Utilisateur",
		LastName:          "Invité",
		Role:              &role,
		CustomPermissions: custom,
		InvitedBy:         &invitedBy,
	}
	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		if IsPolicyRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrWriteForbidden, err)
		}
		// The profile may already exist, lazily created on a first
		// login that raced the invitation. Apply the invited access
		// instead of failing.
		if IsUniqueViolation(err) {
			if uerr := s.repo.UpdateAccess(ctx, id, role, custom); uerr != nil {
				return nil, fmt.Errorf("%w: %v", ErrResolution, uerr)
			}
			return s.repo.GetByID(ctx, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return created, nil
}

// List returns every profile.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

// UpdateAccess changes a profile's role and custom permission override.
func (s *Service) UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error {
	if !role.Valid() {
		return fmt.Errorf("profiles: invalid role %q", role)
	}
	return s.repo.UpdateAccess(ctx, id, role, custom)
}

// Delete removes a profile. The acting identity can never delete its own
// record.
func (s *Service) Delete(ctx context.Context, target, actor uuid.UUID) error {
	if target == actor {
		return ErrSelfDeletion
	}
	return s.repo.Delete(ctx, target)
}

// LegacyRole exposes the configured fallback role.
func (s *Service) LegacyRole() rbac.Role {
	return s.legacyRole
}

// Package profiles persists and resolves the administrative profile
// attached to each authenticated identity.
package profiles

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garagehq/garagehq/internal/rbac"
)

var (
	// ErrProfileNotFound indicates no profile row exists for the identity.
	ErrProfileNotFound = errors.New("profiles: profile not found")
	// ErrWriteForbidden indicates the store's access policy rejected a
	// profile write. Surfaced distinctly because a misconfigured policy
	// is the most common failure in this system.
	ErrWriteForbidden = errors.New("profiles: profile write forbidden by store policy")
	// ErrResolution wraps any other read/write failure during resolution.
	ErrResolution = errors.New("profiles: profile resolution failed")
	// ErrSelfDeletion indicates an identity tried to delete its own profile.
	ErrSelfDeletion = errors.New("profiles: cannot delete your own profile")
)

// Profile is the persisted administrative record for one identity. Role
// and CustomPermissions are deliberately optional: legacy rows may carry
// neither, and the resolver owns the defaulting logic in one place
// instead of scattering nil checks across call sites.
type Profile struct {
	ID                uuid.UUID
	FirstName         string
	LastName          string
	Role              *rbac.Role
	CustomPermissions rbac.PermissionSet
	InvitedBy         *uuid.UUID
	CreatedAt         time.Time
}

// Effective computes the identity's effective role and permission set.
// Total over the optional structure: a missing role falls back to the
// configured legacy role, a custom permission set replaces the role
// default entirely (no merge).
func (p Profile) Effective(legacyRole rbac.Role) rbac.Resolution {
	role := legacyRole
	if p.Role != nil {
		role = *p.Role
	}
	perms := p.CustomPermissions
	if perms == nil {
		perms = rbac.Defaults(role)
	}
	return rbac.Resolution{Role: role, Permissions: perms.Clone()}
}

package users

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garagehq/garagehq/internal/rbac"
)

var (
	// ErrInvitationNotFound indicates an unknown invitation ID.
	ErrInvitationNotFound = errors.New("users: invitation not found")
	// ErrInvitationSettled indicates a repair attempt on an invitation
	// whose profile already exists.
	ErrInvitationSettled = errors.New("users: invitation already settled")
)

// InvitationStatus tracks how far an invitation progressed.
type InvitationStatus string

const (
	// StatusSent means both the account and the profile exist.
	StatusSent InvitationStatus = "sent"
	// StatusProfilePending means the account was created but the
	// profile write failed and needs a repair pass.
	StatusProfilePending InvitationStatus = "profile-pending"
)

// Invitation records a collaborator invitation and its progress.
type Invitation struct {
	ID                uuid.UUID          `json:"id"`
	AccountID         uuid.UUID          `json:"account_id"`
	Email             string             `json:"email"`
	Role              rbac.Role          `json:"role"`
	CustomPermissions rbac.PermissionSet `json:"custom_permissions,omitempty"`
	Status            InvitationStatus   `json:"status"`
	InvitedBy         uuid.UUID          `json:"invited_by"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// User is a directory entry combining the account and its profile.
type User struct {
	ID                uuid.UUID          `json:"id"`
	Email             string             `json:"email"`
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	Role              *rbac.Role         `json:"role"`
	CustomPermissions rbac.PermissionSet `json:"custom_permissions,omitempty"`
	EffectiveRole     rbac.Role          `json:"effective_role"`
	Permissions       rbac.PermissionSet `json:"permissions"`
	InvitedBy         *uuid.UUID         `json:"invited_by,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/garagehq/garagehq/internal/auth"
	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/jobs"
)

// IdentityProvider abstracts the account store used when inviting.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*auth.Account, error)
	FindAccount(ctx context.Context, id uuid.UUID) (*auth.Account, error)
}

// Enqueuer submits invitation emails to the job queue.
type Enqueuer interface {
	EnqueueInvitationEmail(ctx context.Context, payload jobs.InvitationEmailPayload) (*asynq.TaskInfo, error)
}

// EventSink receives session events so observers can re-evaluate an
// identity whose access just changed.
type EventSink interface {
	Publish(ev rbac.SessionEvent)
}

// Service implements collaborator management and the invitation flow.
type Service struct {
	identity IdentityProvider
	profiles *profiles.Service
	invites  InvitationRepository
	queue    Enqueuer
	events   EventSink
	loginURL string
	logger   *slog.Logger
}

// NewService constructs a Service. events may be nil.
func NewService(identity IdentityProvider, profileService *profiles.Service, invites InvitationRepository, queue Enqueuer, events EventSink, loginURL string, logger *slog.Logger) *Service {
	return &Service{
		identity: identity,
		profiles: profileService,
		invites:  invites,
		queue:    queue,
		events:   events,
		loginURL: loginURL,
		logger:   logger,
	}
}

func (s *Service) publishRefresh(id uuid.UUID) {
	if s.events == nil {
		return
	}
	s.events.Publish(rbac.SessionEvent{Kind: rbac.EventRefreshed, AccountID: id})
}

// List returns the user directory, profiles joined with account emails.
func (s *Service) List(ctx context.Context) ([]User, error) {
	list, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(list))
	for _, p := range list {
		entry := User{
			ID:                p.ID,
			FirstName:         p.FirstName,
			LastName:          p.LastName,
			Role:              p.Role,
			CustomPermissions: p.CustomPermissions,
			InvitedBy:         p.InvitedBy,
			CreatedAt:         p.CreatedAt,
		}
		eff := p.Effective(s.profiles.LegacyRole())
		entry.EffectiveRole = eff.Role
		entry.Permissions = eff.Permissions
		if account, err := s.identity.FindAccount(ctx, p.ID); err == nil {
			entry.Email = account.Email
		} else {
			s.logger.Warn("profile without account", slog.String("profile_id", p.ID.String()), slog.Any("error", err))
		}
		out = append(out, entry)
	}
	return out, nil
}

// Invite provisions an account with a temporary password, creates its
// profile and queues the credentials email. When the profile write
// fails the invitation is recorded as profile-pending so an
// administrator can repair it later.
func (s *Service) Invite(ctx context.Context, email string, role rbac.Role, custom rbac.PermissionSet, invitedBy uuid.UUID) (*Invitation, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("users: invalid role %q", role)
	}

	temp, err := auth.TemporaryPassword()
	if err != nil {
		return nil, err
	}
	account, err := s.identity.SignUp(ctx, email, temp)
	if err != nil {
		return nil, err
	}

	inv := Invitation{
		ID:                uuid.New(),
		AccountID:         account.ID,
		Email:             email,
		Role:              role,
		CustomPermissions: custom,
		Status:            StatusSent,
		InvitedBy:         invitedBy,
	}
	if _, perr := s.profiles.CreateInvited(ctx, account.ID, role, custom, invitedBy); perr != nil {
		s.logger.Warn("invitation profile write failed",
			slog.String("email", email), slog.Any("error", perr))
		inv.Status = StatusProfilePending
	}

	if err := s.invites.Insert(ctx, inv); err != nil {
		return nil, err
	}

	// Credentials are only known now, so the email goes out even when
	// the profile is pending. Queue failures are not fatal.
	if _, err := s.queue.EnqueueInvitationEmail(ctx, jobs.InvitationEmailPayload{
		Email:             email,
		TemporaryPassword: temp,
		Role:              string(role),
		LoginURL:          s.loginURL,
	}); err != nil {
		s.logger.Warn("enqueue invitation email", slog.String("email", email), slog.Any("error", err))
	}

	return &inv, nil
}

// Invitations lists invitation records.
func (s *Service) Invitations(ctx context.Context) ([]Invitation, error) {
	return s.invites.List(ctx)
}

// Repair retries the profile write for a profile-pending invitation.
func (s *Service) Repair(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	inv, err := s.invites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusProfilePending {
		return nil, ErrInvitationSettled
	}
	if _, err := s.profiles.CreateInvited(ctx, inv.AccountID, inv.Role, inv.CustomPermissions, inv.InvitedBy); err != nil {
		return nil, err
	}
	if err := s.invites.UpdateStatus(ctx, inv.ID, StatusSent); err != nil {
		return nil, err
	}
	inv.Status = StatusSent
	s.publishRefresh(inv.AccountID)
	return inv, nil
}

// UpdateAccess changes a user's role and custom permission override.
func (s *Service) UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error {
	if err := s.profiles.UpdateAccess(ctx, id, role, custom); err != nil {
		return err
	}
	s.publishRefresh(id)
	return nil
}

// Remove deletes a user's profile. Actors can never remove themselves.
func (s *Service) Remove(ctx context.Context, target, actor uuid.UUID) error {
	return s.profiles.Delete(ctx, target, actor)
}

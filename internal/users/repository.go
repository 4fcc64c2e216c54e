package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagehq/garagehq/internal/rbac"
)

// InvitationRepository defines persistence for invitations.
type InvitationRepository interface {
	Insert(ctx context.Context, inv Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	List(ctx context.Context) ([]Invitation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error
}

// PGInvitationRepository implements InvitationRepository using PostgreSQL.
type PGInvitationRepository struct {
	pool *pgxpool.Pool
}

// NewInvitationRepository constructs a PostgreSQL repository.
func NewInvitationRepository(pool *pgxpool.Pool) *PGInvitationRepository {
	return &PGInvitationRepository{pool: pool}
}

const invitationColumns = `id, account_id, email, role, custom_permissions, status, invited_by, created_at, updated_at`

// Insert records a new invitation row.
func (r *PGInvitationRepository) Insert(ctx context.Context, inv Invitation) error {
	custom, err := marshalPermissions(inv.CustomPermissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO invitations (id, account_id, email, role, custom_permissions, status, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		inv.ID, inv.AccountID, inv.Email, string(inv.Role), custom, string(inv.Status), inv.InvitedBy,
	)
	if err != nil {
		return fmt.Errorf("users: insert invitation: %w", err)
	}
	return nil
}

// GetByID fetches one invitation.
func (r *PGInvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return inv, nil
}

// List returns invitations newest first.
func (r *PGInvitationRepository) List(ctx context.Context) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invitationColumns+` FROM invitations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("users: list invitations: %w", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// UpdateStatus transitions an invitation.
func (r *PGInvitationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invitations SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("users: update invitation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var (
		inv       Invitation
		role      string
		status    string
		custom    []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&inv.ID, &inv.AccountID, &inv.Email, &role, &custom, &status, &inv.InvitedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("users: invitation %s: %w", inv.ID, err)
	}
	inv.Role = parsed
	inv.Status = InvitationStatus(status)
	inv.CreatedAt = createdAt
	inv.UpdatedAt = updatedAt
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &inv.CustomPermissions); err != nil {
			return nil, fmt.Errorf("users: invitation %s: decode permissions: %w", inv.ID, err)
		}
	}
	return &inv, nil
}

func marshalPermissions(set rbac.PermissionSet) ([]byte, error) {
	if set == nil {
		return nil, nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("users: encode permissions: %w", err)
	}
	return data, nil
}

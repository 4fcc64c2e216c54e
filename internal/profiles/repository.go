package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagehq/garagehq/internal/rbac"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Insert(ctx context.Context, p Profile) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, first_name, last_name, role, custom_permissions, invited_by, created_at`

// GetByID fetches one profile row.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Insert creates one profile row.
func (r *PGRepository) Insert(ctx context.Context, p Profile) (*Profile, error) {
	custom, err := marshalPermissions(p.CustomPermissions)
	if err != nil {
		return nil, err
	}
	var role *string
	if p.Role != nil {
		s := string(*p.Role)
		role = &s
	}
	now := time.Now().UTC()
	if !p.CreatedAt.IsZero() {
		now = p.CreatedAt
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO profiles (id, first_name, last_name, role, custom_permissions, invited_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.FirstName, p.LastName, role, custom, p.InvitedBy, now,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = now
	return &p, nil
}

// List returns all profiles ordered by creation time.
func (r *PGRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateAccess sets the role and custom permission override for a profile.
// A nil custom set clears the override so the role default applies again.
func (r *PGRepository) UpdateAccess(ctx context.Context, id uuid.UUID, role rbac.Role, custom rbac.PermissionSet) error {
	payload, err := marshalPermissions(custom)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET role = $1, custom_permissions = $2 WHERE id = $3`,
		string(role), payload, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// Delete removes one profile row.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p       Profile
		role    *string
		custom  []byte
		invited *uuid.UUID
	)
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &role, &custom, &invited, &p.CreatedAt); err != nil {
		return nil, err
	}
	if role != nil {
		parsed, err := rbac.ParseRole(*role)
		if err != nil {
			return nil, fmt.Errorf("profiles: stored role: %w", err)
		}
		p.Role = &parsed
	}
	if len(custom) > 0 {
		var perms rbac.PermissionSet
		if err := json.Unmarshal(custom, &perms); err != nil {
			return nil, fmt.Errorf("profiles: stored custom permissions: %w", err)
		}
		p.CustomPermissions = perms
	}
	p.InvitedBy = invited
	return &p, nil
}

func marshalPermissions(perms rbac.PermissionSet) ([]byte, error) {
	if perms == nil {
		return nil, nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("profiles: encode custom permissions: %w", err)
	}
	return data, nil
}

// IsPolicyRejection reports whether the error is the store's access
// policy refusing a write, as opposed to any other failure. SQLSTATE
// 42501 is insufficient_privilege, what row-level security raises.
func IsPolicyRejection(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42501"
	}
	return false
}

// IsUniqueViolation reports a duplicate-key insert, used to treat a
// concurrent lazy create as already-done.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

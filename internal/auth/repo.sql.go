package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `i.id, i.email, i.password_hash, i.role_id, r.name, i.is_verified, i.is_active, i.deleted_at, i.created_at, i.updated_at`

func (r *PGRepository) scanIdentity(row pgx.Row) (*Identity, error) {
	var identity Identity
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.RoleID,
		&identity.RoleName,
		&identity.IsVerified,
		&identity.IsActive,
		&identity.DeletedAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// FindByEmail fetches an identity by normalized email. Soft-deleted rows are
// treated as absent.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities i
		JOIN roles r ON r.id = i.role_id
		WHERE i.email = $1 AND i.deleted_at IS NULL`, email)
	return r.scanIdentity(row)
}

// FindByID fetches an identity by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities i
		JOIN roles r ON r.id = i.role_id
		WHERE i.id = $1 AND i.deleted_at IS NULL`, id)
	return r.scanIdentity(row)
}

// CreateLoginSession persists a durable session row for bulk revoke and audit.
func (r *PGRepository) CreateLoginSession(ctx context.Context, s Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_sessions (id, identity_id, role_name, issued_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.IdentityID, s.Role, s.IssuedAt, s.ExpiresAt, s.IP, s.UserAgent)
	return err
}

// GetLoginSession fetches a durable session row.
func (r *PGRepository) GetLoginSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, role_name, issued_at, expires_at, ip, user_agent
		FROM login_sessions
		WHERE id = $1`, id).Scan(&s.ID, &s.IdentityID, &s.Role, &s.IssuedAt, &s.ExpiresAt, &s.IP, &s.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteLoginSessionsByIDs removes session rows, returning the count deleted.
func (r *PGRepository) DeleteLoginSessionsByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListLoginSessionsByIdentity returns all durable session rows for an identity.
func (r *PGRepository) ListLoginSessionsByIdentity(ctx context.Context, identityID int64) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, role_name, issued_at, expires_at, ip, user_agent
		FROM login_sessions
		WHERE identity_id = $1`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.IdentityID, &s.Role, &s.IssuedAt, &s.ExpiresAt, &s.IP, &s.UserAgent); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

var _ Repository = (*PGRepository)(nil)

package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, is_delete_protected, is_update_protected, is_permanent, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.IsDeleteProtected, &role.IsUpdateProtected, &role.IsPermanent, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsDeleteProtected, &role.IsUpdateProtected, &role.IsPermanent, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// CreateRole inserts a new role. A duplicate name surfaces as ConflictError.
func (r *Repository) CreateRole(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name) VALUES ($1)
		RETURNING `+roleColumns, name)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, &shared.ConflictError{Reason: "role name already exists"}
		}
		return Role{}, err
	}
	return role, nil
}

// RenameRole updates the role name.
func (r *Repository) RenameRole(ctx context.Context, id int64, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, updated_at = now() WHERE id = $1
		RETURNING `+roleColumns, id, name)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, &shared.ConflictError{Reason: "role name already exists"}
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role and its permission entries, returning the number
// of role rows deleted.
func (r *Repository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	if _, err := r.pool.Exec(ctx, `
		DELETE FROM permission_entries WHERE subject_type = 'role' AND subject_id = $1`, id); err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountMembers counts non-deleted identities holding the role.
func (r *Repository) CountMembers(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM identities WHERE role_id = $1 AND deleted_at IS NULL`, id).Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ RepositoryPort = (*Repository)(nil)

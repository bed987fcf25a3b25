package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/db"
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

const roleColumns = `id, name, is_delete_protected, is_update_protected, is_permanent, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.IsDeleteProtected,
		&role.IsUpdateProtected,
		&role.IsPermanent,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetIdentityRole fetches the role assigned to an identity.
func (r *PGRepository) GetIdentityRole(ctx context.Context, identityID int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.is_delete_protected, r.is_update_protected, r.is_permanent, r.created_at, r.updated_at
		FROM roles r
		JOIN identities i ON i.role_id = r.id
		WHERE i.id = $1 AND i.deleted_at IS NULL`, identityID))
}

// CountMembersOfRole counts non-deleted identities assigned to the role.
func (r *PGRepository) CountMembersOfRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM identities WHERE role_id = $1 AND deleted_at IS NULL`, roleID).Scan(&count)
	return count, err
}

// ListRoleMemberIDs returns ids of current role members.
func (r *PGRepository) ListRoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM identities WHERE role_id = $1 AND deleted_at IS NULL`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPermissionEntries returns entries for a role or identity subject.
func (r *PGRepository) ListPermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64) ([]PermissionEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT resource, can_create, can_read, can_update, can_delete
		FROM permission_entries
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY resource`, string(subjectType), subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []PermissionEntry
	for rows.Next() {
		var e PermissionEntry
		if err := rows.Scan(&e.Resource, &e.CanCreate, &e.CanRead, &e.CanUpdate, &e.CanDelete); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SavePermissionEntries replaces all entries for a subject atomically.
func (r *PGRepository) SavePermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64, entries []PermissionEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM permission_entries WHERE subject_type = $1 AND subject_id = $2`,
			string(subjectType), subjectID); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.Exec(ctx, `
				INSERT INTO permission_entries (subject_type, subject_id, resource, can_create, can_read, can_update, can_delete)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				string(subjectType), subjectID, e.Resource, e.CanCreate, e.CanRead, e.CanUpdate, e.CanDelete); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ Repository = (*PGRepository)(nil)

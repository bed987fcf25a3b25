package roles

import (
	"context"
	"strings"

	"github.com/meridian-commerce/meridian-commerce/internal/rbac"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// PermissionWriter is the slice of the permission service the roles module
// drives: seeding defaults on create and replacing entries on update.
type PermissionWriter interface {
	SetRolePermissions(ctx context.Context, roleID int64, entries []rbac.PermissionEntry) error
}

// Service handles role business logic.
type Service struct {
	repo        RepositoryPort
	permissions PermissionWriter
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, permissions PermissionWriter) *Service {
	return &Service{repo: repo, permissions: permissions}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, shared.Internal(err)
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role seeded with deny-all entries for every
// enumerated resource.
func (s *Service) CreateRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, &shared.ValidationError{Fields: map[string]string{"name": "required"}}
	}
	role, err := s.repo.CreateRole(ctx, name)
	if err != nil {
		return Role{}, err
	}
	if err := s.permissions.SetRolePermissions(ctx, role.ID, rbac.DefaultEntries()); err != nil {
		return Role{}, err
	}
	return role, nil
}

// RenameRole updates a role name. Protection flags short-circuit the write.
func (s *Service) RenameRole(ctx context.Context, id int64, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, &shared.ValidationError{Fields: map[string]string{"name": "required"}}
	}
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsPermanent {
		return Role{}, &shared.ConflictError{Reason: "permanent role cannot be modified"}
	}
	if role.IsUpdateProtected {
		return Role{}, &shared.ConflictError{Reason: "role is update-protected"}
	}
	return s.repo.RenameRole(ctx, id, name)
}

// DeleteRole removes a role. A protected role or a role with active members
// cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsPermanent {
		return &shared.ConflictError{Reason: "permanent role cannot be deleted"}
	}
	if role.IsDeleteProtected {
		return &shared.ConflictError{Reason: "role is delete-protected"}
	}
	members, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return shared.Internal(err)
	}
	if members > 0 {
		return &shared.ConflictError{Reason: "role has active members"}
	}
	deleted, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return shared.Internal(err)
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

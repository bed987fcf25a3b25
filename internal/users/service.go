package users

import (
	"context"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// Invalidator applies the invalidate-and-revoke unit after a privilege-
// relevant mutation. Satisfied by the rbac service.
type Invalidator interface {
	InvalidateIdentity(ctx context.Context, identityID int64) error
}

// Notifier tells an account holder that access changed. Best effort; the
// mutation never depends on delivery.
type Notifier interface {
	SecurityAlert(ctx context.Context, email, reason string) bool
}

// Service handles identity administration.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	notifier    Notifier
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo RepositoryPort, invalidator Invalidator, notifier Notifier) *Service {
	return &Service{repo: repo, invalidator: invalidator, notifier: notifier}
}

// ListUsers returns one page of identities with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	users, total, err := s.repo.ListUsers(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, shared.Internal(err)
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// AssignRole reassigns an identity's role. The mutation counts as applied
// only after the member's cached permissions are dropped and every one of
// its sessions is revoked; stale sessions must not retain the old role.
func (s *Service) AssignRole(ctx context.Context, actorID, identityID, roleID int64) error {
	if actorID == identityID {
		return &shared.ConflictError{Reason: "cannot change own role"}
	}
	if _, err := s.repo.GetUser(ctx, identityID); err != nil {
		return err
	}
	if err := s.repo.SetRole(ctx, identityID, roleID); err != nil {
		return shared.Internal(err)
	}
	return s.invalidator.InvalidateIdentity(ctx, identityID)
}

// Deactivate disables an identity and force-logs it out everywhere.
func (s *Service) Deactivate(ctx context.Context, actorID, identityID int64) error {
	if actorID == identityID {
		return &shared.ConflictError{Reason: "cannot deactivate own account"}
	}
	user, err := s.repo.GetUser(ctx, identityID)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, identityID); err != nil {
		return err
	}
	if err := s.invalidator.InvalidateIdentity(ctx, identityID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SecurityAlert(ctx, user.Email, "your account was deactivated")
	}
	return nil
}

// Remove soft-deletes an identity, keeping the row while sessions may still
// reference it, and revokes all access.
func (s *Service) Remove(ctx context.Context, actorID, identityID int64) error {
	if actorID == identityID {
		return &shared.ConflictError{Reason: "cannot delete own account"}
	}
	user, err := s.repo.GetUser(ctx, identityID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, identityID); err != nil {
		return err
	}
	if err := s.invalidator.InvalidateIdentity(ctx, identityID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SecurityAlert(ctx, user.Email, "your account was removed")
	}
	return nil
}

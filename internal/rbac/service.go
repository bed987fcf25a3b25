package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// SessionRevoker invalidates every active session of an identity. Satisfied
// by the auth session manager.
type SessionRevoker interface {
	RevokeAllForIdentity(ctx context.Context, identityID int64) error
}

// Service owns permission writes and the invalidation contract: a write to a
// role's entries or to role membership invalidates the affected identities'
// cached permissions AND revokes their sessions as one logical unit.
// Permission changes take effect by forcing re-authentication, never by
// live-patching a session's claims.
type Service struct {
	repo     Repository
	cache    *PermissionCache
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewService constructs the permission service.
func NewService(repo Repository, cache *PermissionCache, sessions SessionRevoker, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, sessions: sessions, logger: logger}
}

// Cache exposes the permission cache for collaborators.
func (s *Service) Cache() *PermissionCache {
	return s.cache
}

// EffectivePermissions returns the identity's resolved permission set.
func (s *Service) EffectivePermissions(ctx context.Context, identityID int64) (PermissionSet, error) {
	set, _, err := s.cache.GetEffective(ctx, identityID)
	if err != nil {
		return nil, shared.Internal(err)
	}
	return set, nil
}

// SetRolePermissions replaces a role's permission entries. Protection flags
// short-circuit before any cache work. The write completes only after the
// member invalidation and session revocation fan-out has finished.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, entries []PermissionEntry) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsPermanent {
		return &shared.ConflictError{Reason: "permanent role cannot be modified"}
	}
	if role.IsUpdateProtected {
		return &shared.ConflictError{Reason: "role is update-protected"}
	}
	normalized, err := NormalizeEntries(entries)
	if err != nil {
		return err
	}
	if err := s.repo.SavePermissionEntries(ctx, SubjectRole, roleID, normalized); err != nil {
		return shared.Internal(err)
	}
	return s.InvalidateForRole(ctx, roleID)
}

// SetIdentityOverrides replaces an identity's override entries with the same
// invalidate-and-revoke semantics as a role write.
func (s *Service) SetIdentityOverrides(ctx context.Context, identityID int64, entries []PermissionEntry) error {
	role, err := s.repo.GetIdentityRole(ctx, identityID)
	if err != nil {
		return err
	}
	if role.IsPermanent {
		return &shared.ConflictError{Reason: "permanent role members cannot be targeted"}
	}
	normalized, err := NormalizeEntries(entries)
	if err != nil {
		return err
	}
	if err := s.repo.SavePermissionEntries(ctx, SubjectIdentity, identityID, normalized); err != nil {
		return shared.Internal(err)
	}
	return s.refreshIdentity(ctx, identityID)
}

// InvalidateForRole resolves every current member of the role, drops their
// cached permissions and revokes their sessions. Retryable: each step is
// idempotent.
func (s *Service) InvalidateForRole(ctx context.Context, roleID int64) error {
	if err := s.cache.InvalidateForRole(ctx, roleID); err != nil {
		return shared.Internal(err)
	}
	members, err := s.repo.ListRoleMemberIDs(ctx, roleID)
	if err != nil {
		return shared.Internal(err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range members {
		g.Go(func() error {
			return s.sessions.RevokeAllForIdentity(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return shared.Internal(fmt.Errorf("revoke role members: %w", err))
	}
	return nil
}

// InvalidateIdentity drops one identity's cached permissions and revokes its
// sessions, used after role reassignment or deactivation.
func (s *Service) InvalidateIdentity(ctx context.Context, identityID int64) error {
	return s.refreshIdentity(ctx, identityID)
}

func (s *Service) refreshIdentity(ctx context.Context, identityID int64) error {
	if err := s.cache.Invalidate(ctx, identityID); err != nil {
		return shared.Internal(err)
	}
	if err := s.sessions.RevokeAllForIdentity(ctx, identityID); err != nil {
		return shared.Internal(err)
	}
	return nil
}

// NormalizeEntries validates entries against the closed resource set,
// rejects duplicates, and fills in deny-all entries for any resource left
// out so every enumerated resource keeps exactly one entry.
func NormalizeEntries(entries []PermissionEntry) ([]PermissionEntry, error) {
	seen := make(map[string]PermissionEntry, len(entries))
	fields := make(map[string]string)
	for _, e := range entries {
		if !ValidResource(e.Resource) {
			fields[e.Resource] = "unknown resource"
			continue
		}
		if _, dup := seen[e.Resource]; dup {
			fields[e.Resource] = "duplicate entry"
			continue
		}
		seen[e.Resource] = e
	}
	if len(fields) > 0 {
		return nil, &shared.ValidationError{Fields: fields}
	}
	normalized := make([]PermissionEntry, 0, len(Resources))
	for _, resource := range Resources {
		if e, ok := seen[resource]; ok {
			normalized = append(normalized, e)
			continue
		}
		normalized = append(normalized, PermissionEntry{Resource: resource})
	}
	return normalized, nil
}

package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// CacheRecorder counts permission-cache reads for observability.
type CacheRecorder interface {
	PermissionCacheRead(hit bool)
}

type effectivePermissions struct {
	Permanent bool          `json:"permanent"`
	Entries   PermissionSet `json:"entries"`
}

// PermissionCache holds cache-aside projections of each identity's effective
// permission set. Entries are disposable: absent, stale within the TTL
// window, or explicitly invalidated; the store is always authoritative.
type PermissionCache struct {
	store    cache.Store
	repo     Repository
	ttl      time.Duration
	recorder CacheRecorder
}

// NewPermissionCache constructs the cache helper. recorder may be nil.
func NewPermissionCache(store cache.Store, repo Repository, ttl time.Duration, recorder CacheRecorder) *PermissionCache {
	return &PermissionCache{store: store, repo: repo, ttl: ttl, recorder: recorder}
}

func permissionKey(identityID int64) string {
	return fmt.Sprintf("perm:%d", identityID)
}

// GetEffective returns the identity's effective permission set, resolving on
// miss by unioning role entries with per-identity overrides (an override row
// wins for its resource) and caching the result with TTL.
func (c *PermissionCache) GetEffective(ctx context.Context, identityID int64) (PermissionSet, bool, error) {
	payload, found, err := c.store.Get(ctx, permissionKey(identityID))
	if err == nil && found {
		var cached effectivePermissions
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.countRead(true)
			return cached.Entries, cached.Permanent, nil
		}
	}
	c.countRead(false)

	resolved, err := c.resolve(ctx, identityID)
	if err != nil {
		return nil, false, err
	}
	if raw, err := json.Marshal(resolved); err == nil {
		// Best effort; a failed cache write just means the next read resolves again.
		_ = c.store.Set(ctx, permissionKey(identityID), raw, c.ttl)
	}
	return resolved.Entries, resolved.Permanent, nil
}

func (c *PermissionCache) resolve(ctx context.Context, identityID int64) (effectivePermissions, error) {
	role, err := c.repo.GetIdentityRole(ctx, identityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Unknown identity resolves to an empty, deny-everything set.
			return effectivePermissions{Entries: PermissionSet{}}, nil
		}
		return effectivePermissions{}, err
	}

	set := PermissionSet{}
	roleEntries, err := c.repo.ListPermissionEntries(ctx, SubjectRole, role.ID)
	if err != nil {
		return effectivePermissions{}, err
	}
	for _, e := range roleEntries {
		set[e.Resource] = e
	}
	overrides, err := c.repo.ListPermissionEntries(ctx, SubjectIdentity, identityID)
	if err != nil {
		return effectivePermissions{}, err
	}
	for _, e := range overrides {
		set[e.Resource] = e
	}
	return effectivePermissions{Permanent: role.IsPermanent, Entries: set}, nil
}

// Invalidate drops the cached set for one identity. Idempotent.
func (c *PermissionCache) Invalidate(ctx context.Context, identityID int64) error {
	return c.store.Delete(ctx, permissionKey(identityID))
}

// InvalidateForRole drops the cached set of every current member of the role.
func (c *PermissionCache) InvalidateForRole(ctx context.Context, roleID int64) error {
	members, err := c.repo.ListRoleMemberIDs(ctx, roleID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	keys := make([]string, len(members))
	for i, id := range members {
		keys[i] = permissionKey(id)
	}
	return c.store.Delete(ctx, keys...)
}

func (c *PermissionCache) countRead(hit bool) {
	if c.recorder != nil {
		c.recorder.PermissionCacheRead(hit)
	}
}

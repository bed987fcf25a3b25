package rbac

import "context"

// Gate answers "can this identity do action on resource". It consults the
// permission cache with store fallback and is fail-closed: no entry means
// deny. The permanent top role is recognized by flag, never by permission
// lookup.
type Gate struct {
	cache *PermissionCache
}

// NewGate constructs a Gate.
func NewGate(cache *PermissionCache) *Gate {
	return &Gate{cache: cache}
}

// Allow returns the specific boolean for action on resource.
func (g *Gate) Allow(ctx context.Context, identityID int64, action Action, resource string) (bool, error) {
	if !ValidAction(action) || !ValidResource(resource) {
		return false, nil
	}
	set, permanent, err := g.cache.GetEffective(ctx, identityID)
	if err != nil {
		return false, err
	}
	if permanent {
		return true, nil
	}
	return set.Allows(action, resource), nil
}

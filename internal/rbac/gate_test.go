package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateFailClosed(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	seedEditor(repo)
	gate := NewGate(NewPermissionCache(newTestStore(t), repo, time.Minute, nil))

	allowed, err := gate.Allow(ctx, 7, ActionRead, "Product")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Action not granted on a known resource.
	allowed, err = gate.Allow(ctx, 7, ActionDelete, "Product")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Resource outside the closed set.
	allowed, err = gate.Allow(ctx, 7, ActionRead, "Warehouse")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Unknown action verb.
	allowed, err = gate.Allow(ctx, 7, Action("publish"), "Product")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Identity with no resolvable role.
	allowed, err = gate.Allow(ctx, 9999, ActionRead, "Product")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGatePermanentRoleBypassesEntries(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	repo.roles[1] = Role{ID: 1, Name: "Owner", IsPermanent: true, IsDeleteProtected: true, IsUpdateProtected: true}
	repo.memberRole[3] = 1
	gate := NewGate(NewPermissionCache(newTestStore(t), repo, time.Minute, nil))

	// No entries exist for the role, yet every valid pair is allowed.
	for _, resource := range Resources {
		for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
			allowed, err := gate.Allow(ctx, 3, action, resource)
			require.NoError(t, err)
			assert.True(t, allowed, "%s on %s", action, resource)
		}
	}

	// The flag does not leak past the closed set.
	allowed, err := gate.Allow(ctx, 3, ActionRead, "Warehouse")
	require.NoError(t, err)
	assert.False(t, allowed)
}

package rbac

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

type mockRevoker struct {
	mu      sync.Mutex
	revoked []int64
	err     error
}

func (m *mockRevoker) RevokeAllForIdentity(ctx context.Context, identityID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked = append(m.revoked, identityID)
	return nil
}

func (m *mockRevoker) revokedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]int64(nil), m.revoked...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockRevoker) {
	t.Helper()
	repo := newMockRepo()
	revoker := &mockRevoker{}
	cache := NewPermissionCache(newTestStore(t), repo, time.Minute, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, cache, revoker, logger), repo, revoker
}

func TestSetRolePermissionsInvalidatesAndRevokes(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newTestService(t)
	seedEditor(repo)
	repo.memberRole[8] = 2
	repo.memberRole[9] = 2

	// Warm the cache for one member so invalidation is observable.
	stale, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	require.True(t, stale.Allows(ActionUpdate, "Product"))

	err = svc.SetRolePermissions(ctx, 2, []PermissionEntry{
		{Resource: "Product", CanRead: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 8, 9}, revoker.revokedIDs())

	// A fresh read reflects the write immediately.
	set, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.False(t, set.Allows(ActionUpdate, "Product"))
	assert.True(t, set.Allows(ActionRead, "Product"))

	// The gate agrees once the member re-authenticates.
	gate := NewGate(svc.Cache())
	allowed, err := gate.Allow(ctx, 7, ActionUpdate, "Product")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Every enumerated resource got exactly one entry.
	assert.Len(t, repo.roleEntries[2], len(Resources))
}

func TestSetRolePermissionsGuards(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newTestService(t)
	repo.roles[1] = Role{ID: 1, Name: "Owner", IsPermanent: true}
	repo.roles[3] = Role{ID: 3, Name: "System", IsUpdateProtected: true}

	var conflict *shared.ConflictError
	err := svc.SetRolePermissions(ctx, 1, DefaultEntries())
	require.ErrorAs(t, err, &conflict)

	err = svc.SetRolePermissions(ctx, 3, DefaultEntries())
	require.ErrorAs(t, err, &conflict)

	err = svc.SetRolePermissions(ctx, 42, DefaultEntries())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Guards fire before any side effect.
	assert.Empty(t, revoker.revokedIDs())
	assert.Empty(t, repo.saved)
}

func TestSetRolePermissionsValidation(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	seedEditor(repo)

	var invalid *shared.ValidationError
	err := svc.SetRolePermissions(ctx, 2, []PermissionEntry{
		{Resource: "Warehouse", CanRead: true},
	})
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Fields, "Warehouse")

	err = svc.SetRolePermissions(ctx, 2, []PermissionEntry{
		{Resource: "Product", CanRead: true},
		{Resource: "Product", CanUpdate: true},
	})
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Fields, "Product")
}

func TestSetIdentityOverrides(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newTestService(t)
	seedEditor(repo)

	err := svc.SetIdentityOverrides(ctx, 7, []PermissionEntry{
		{Resource: "User", CanRead: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, revoker.revokedIDs())

	set, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.True(t, set.Allows(ActionRead, "User"))
	// Resources absent from the override list fall back to deny-all,
	// replacing what the role granted.
	assert.False(t, set.Allows(ActionRead, "Product"))
}

func TestSetIdentityOverridesPermanentMemberRejected(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newTestService(t)
	repo.roles[1] = Role{ID: 1, Name: "Owner", IsPermanent: true}
	repo.memberRole[3] = 1

	var conflict *shared.ConflictError
	err := svc.SetIdentityOverrides(ctx, 3, []PermissionEntry{{Resource: "User", CanRead: true}})
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, revoker.revokedIDs())
}

func TestInvalidateIdentity(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newTestService(t)
	seedEditor(repo)

	_, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateIdentity(ctx, 7))
	assert.Equal(t, []int64{7}, revoker.revokedIDs())
}

func TestNormalizeEntriesFillsMissing(t *testing.T) {
	normalized, err := NormalizeEntries([]PermissionEntry{
		{Resource: "Brand", CanRead: true},
	})
	require.NoError(t, err)
	require.Len(t, normalized, len(Resources))

	byResource := make(map[string]PermissionEntry, len(normalized))
	for _, e := range normalized {
		byResource[e.Resource] = e
	}
	assert.True(t, byResource["Brand"].CanRead)
	for _, r := range Resources {
		e, ok := byResource[r]
		require.True(t, ok, "resource %s missing", r)
		if r != "Brand" {
			assert.Equal(t, PermissionEntry{Resource: r}, e)
		}
	}
}

package rbac

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

type mockRepo struct {
	roles        map[int64]Role
	memberRole   map[int64]int64
	roleEntries  map[int64][]PermissionEntry
	identEntries map[int64][]PermissionEntry

	listEntryCalls int
	saved          map[string][]PermissionEntry
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		roles:        make(map[int64]Role),
		memberRole:   make(map[int64]int64),
		roleEntries:  make(map[int64][]PermissionEntry),
		identEntries: make(map[int64][]PermissionEntry),
		saved:        make(map[string][]PermissionEntry),
	}
}

func (m *mockRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRepo) GetIdentityRole(ctx context.Context, identityID int64) (Role, error) {
	roleID, ok := m.memberRole[identityID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return m.GetRole(ctx, roleID)
}

func (m *mockRepo) CountMembersOfRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	for _, id := range m.memberRole {
		if id == roleID {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ListRoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error) {
	var out []int64
	for identityID, id := range m.memberRole {
		if id == roleID {
			out = append(out, identityID)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64) ([]PermissionEntry, error) {
	m.listEntryCalls++
	if subjectType == SubjectRole {
		return m.roleEntries[subjectID], nil
	}
	return m.identEntries[subjectID], nil
}

func (m *mockRepo) SavePermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64, entries []PermissionEntry) error {
	if subjectType == SubjectRole {
		m.roleEntries[subjectID] = entries
	} else {
		m.identEntries[subjectID] = entries
	}
	m.saved[string(subjectType)] = entries
	return nil
}

func newTestStore(t *testing.T) cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewStore(client)
}

func seedEditor(repo *mockRepo) {
	repo.roles[2] = Role{ID: 2, Name: "Editor"}
	repo.memberRole[7] = 2
	repo.roleEntries[2] = []PermissionEntry{
		{Resource: "Product", CanCreate: true, CanRead: true, CanUpdate: true},
		{Resource: "Media", CanRead: true},
	}
}

func TestPermissionCacheResolvesAndCaches(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	seedEditor(repo)
	pc := NewPermissionCache(newTestStore(t), repo, time.Minute, nil)

	set, permanent, err := pc.GetEffective(ctx, 7)
	require.NoError(t, err)
	assert.False(t, permanent)
	assert.True(t, set.Allows(ActionUpdate, "Product"))
	assert.False(t, set.Allows(ActionDelete, "Product"))
	calls := repo.listEntryCalls

	// A second read is served from the cache.
	set, _, err = pc.GetEffective(ctx, 7)
	require.NoError(t, err)
	assert.True(t, set.Allows(ActionRead, "Media"))
	assert.Equal(t, calls, repo.listEntryCalls)
}

func TestPermissionCacheOverrideWins(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	seedEditor(repo)
	repo.identEntries[7] = []PermissionEntry{
		{Resource: "Product", CanRead: true},
	}
	pc := NewPermissionCache(newTestStore(t), repo, time.Minute, nil)

	set, _, err := pc.GetEffective(ctx, 7)
	require.NoError(t, err)
	assert.True(t, set.Allows(ActionRead, "Product"))
	assert.False(t, set.Allows(ActionCreate, "Product"), "override replaces the role entry entirely")
	assert.True(t, set.Allows(ActionRead, "Media"), "other resources keep the role entry")
}

func TestPermissionCacheInvalidateForcesResolve(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	seedEditor(repo)
	pc := NewPermissionCache(newTestStore(t), repo, time.Minute, nil)

	_, _, err := pc.GetEffective(ctx, 7)
	require.NoError(t, err)

	// Mutate the store, then invalidate; the next read sees the new state.
	repo.roleEntries[2] = []PermissionEntry{{Resource: "Product", CanRead: true}}
	require.NoError(t, pc.Invalidate(ctx, 7))

	set, _, err := pc.GetEffective(ctx, 7)
	require.NoError(t, err)
	assert.False(t, set.Allows(ActionUpdate, "Product"))
	assert.True(t, set.Allows(ActionRead, "Product"))

	// Idempotent on an absent key.
	assert.NoError(t, pc.Invalidate(ctx, 7777))
}

func TestPermissionCacheInvalidateForRole(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	seedEditor(repo)
	repo.memberRole[8] = 2
	store := newTestStore(t)
	pc := NewPermissionCache(store, repo, time.Minute, nil)

	for _, id := range []int64{7, 8} {
		_, _, err := pc.GetEffective(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, pc.InvalidateForRole(ctx, 2))

	for _, id := range []int64{7, 8} {
		_, found, err := store.Get(ctx, permissionKey(id))
		require.NoError(t, err)
		assert.False(t, found, "member %d should be invalidated", id)
	}
}

func TestPermissionCacheUnknownIdentityDeniesAll(t *testing.T) {
	ctx := context.Background()
	pc := NewPermissionCache(newTestStore(t), newMockRepo(), time.Minute, nil)

	set, permanent, err := pc.GetEffective(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, permanent)
	assert.False(t, set.Allows(ActionRead, "Product"))
}

package users

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

type mockRepo struct {
	users map[int64]User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[int64]User)}
}

func (m *mockRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	all := make([]User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) SetRole(ctx context.Context, id, roleID int64) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.RoleID = roleID
	m.users[id] = u
	return nil
}

func (m *mockRepo) Deactivate(ctx context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	m.users[id] = u
	return nil
}

func (m *mockRepo) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type mockInvalidator struct {
	invalidated []int64
	err         error
}

func (m *mockInvalidator) InvalidateIdentity(ctx context.Context, identityID int64) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, identityID)
	return nil
}

type mockNotifier struct {
	alerts []string
}

func (m *mockNotifier) SecurityAlert(ctx context.Context, email, reason string) bool {
	m.alerts = append(m.alerts, email+": "+reason)
	return true
}

func TestAssignRoleInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	repo.users[7] = User{ID: 7, Email: "alice@example.com", RoleID: 2, IsActive: true}
	invalidator := &mockInvalidator{}
	notifier := &mockNotifier{}
	svc := NewService(repo, invalidator, notifier)

	require.NoError(t, svc.AssignRole(ctx, 1, 7, 3))
	assert.Equal(t, int64(3), repo.users[7].RoleID)
	assert.Equal(t, []int64{7}, invalidator.invalidated)
}

func TestAssignRoleGuards(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	repo.users[7] = User{ID: 7, RoleID: 2, IsActive: true}
	invalidator := &mockInvalidator{}
	notifier := &mockNotifier{}
	svc := NewService(repo, invalidator, notifier)

	var conflict *shared.ConflictError
	err := svc.AssignRole(ctx, 7, 7, 3)
	require.ErrorAs(t, err, &conflict, "self role change must be rejected")

	err = svc.AssignRole(ctx, 1, 42, 3)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, invalidator.invalidated)
}

func TestDeactivateInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	repo.users[7] = User{ID: 7, Email: "alice@example.com", IsActive: true}
	invalidator := &mockInvalidator{}
	notifier := &mockNotifier{}
	svc := NewService(repo, invalidator, notifier)

	require.NoError(t, svc.Deactivate(ctx, 1, 7))
	assert.False(t, repo.users[7].IsActive)
	assert.Equal(t, []int64{7}, invalidator.invalidated)
	assert.Equal(t, []string{"alice@example.com: your account was deactivated"}, notifier.alerts)

	var conflict *shared.ConflictError
	require.ErrorAs(t, svc.Deactivate(ctx, 7, 7), &conflict)
}

func TestRemoveInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	repo.users[7] = User{ID: 7, Email: "alice@example.com", IsActive: true}
	invalidator := &mockInvalidator{}
	notifier := &mockNotifier{}
	svc := NewService(repo, invalidator, notifier)

	require.NoError(t, svc.Remove(ctx, 1, 7))
	_, err := svc.repo.GetUser(ctx, 7)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, []int64{7}, invalidator.invalidated)
	assert.Equal(t, []string{"alice@example.com: your account was removed"}, notifier.alerts)

	var conflict *shared.ConflictError
	require.ErrorAs(t, svc.Remove(ctx, 7, 7), &conflict)
}

func TestListUsersPaginates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	for id := int64(1); id <= 5; id++ {
		repo.users[id] = User{ID: id, IsActive: true}
	}
	svc := NewService(repo, &mockInvalidator{}, nil)

	users, pagination, err := svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(3), users[0].ID)
	assert.Equal(t, 5, pagination.Total)
	assert.Equal(t, 3, pagination.TotalPages)

	// Out-of-range pages come back empty, not as an error.
	users, pagination, err = svc.ListUsers(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 9, pagination.Page)
}

package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

type mockRepo struct {
	identities map[int64]*Identity
	byEmail    map[string]*Identity
	sessions   map[string]Session

	createSessionCalls int
	getSessionCalls    int
	deletedIDs         []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		identities: make(map[int64]*Identity),
		byEmail:    make(map[string]*Identity),
		sessions:   make(map[string]Session),
	}
}

func (m *mockRepo) addIdentity(identity Identity) *Identity {
	copied := identity
	m.identities[copied.ID] = &copied
	m.byEmail[copied.Email] = &copied
	return &copied
}

func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	identity, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return identity, nil
}

func (m *mockRepo) FindByID(ctx context.Context, id int64) (*Identity, error) {
	identity, ok := m.identities[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return identity, nil
}

func (m *mockRepo) CreateLoginSession(ctx context.Context, s Session) error {
	m.createSessionCalls++
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) GetLoginSession(ctx context.Context, id string) (*Session, error) {
	m.getSessionCalls++
	s, ok := m.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (m *mockRepo) DeleteLoginSessionsByIDs(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			n++
		}
		m.deletedIDs = append(m.deletedIDs, id)
	}
	return n, nil
}

func (m *mockRepo) ListLoginSessionsByIdentity(ctx context.Context, identityID int64) ([]Session, error) {
	var out []Session
	for _, s := range m.sessions {
		if s.IdentityID == identityID {
			out = append(out, s)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIdentity(id int64, email string) Identity {
	return Identity{
		ID:         id,
		Email:      email,
		RoleID:     2,
		RoleName:   "Editor",
		IsVerified: true,
		IsActive:   true,
	}
}

func newTestSessionManager(t *testing.T) (*SessionManager, *mockRepo, cache.Store) {
	t.Helper()
	repo := newMockRepo()
	store := newTestStore(t)
	return NewSessionManager(repo, store, time.Hour, discardLogger()), repo, store
}

func TestSessionIssueAndLookup(t *testing.T) {
	ctx := context.Background()
	manager, repo, store := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	claims, err := manager.Issue(ctx, identity, "203.0.113.9", "cli/1.0")
	require.NoError(t, err)
	require.NotEmpty(t, claims.SessionID)
	assert.Equal(t, int64(7), claims.IdentityID)
	assert.Equal(t, "Editor", claims.Role)

	// The durable row and cache projection both exist.
	assert.Equal(t, 1, repo.createSessionCalls)
	_, found, err := store.Get(ctx, sessionKey(claims.SessionID))
	require.NoError(t, err)
	assert.True(t, found)

	got, err := manager.Lookup(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
	assert.Zero(t, repo.getSessionCalls, "fresh cache entry answers without the store")
}

func TestSessionCacheTTLFollowsInjectedClock(t *testing.T) {
	ctx := context.Background()
	manager, repo, store := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	// A pinned clock far in the past must not suppress the projection
	// write; the TTL is measured against the same clock as expiry.
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return base }

	claims, err := manager.Issue(ctx, identity, "", "")
	require.NoError(t, err)

	_, found, err := store.Get(ctx, sessionKey(claims.SessionID))
	require.NoError(t, err)
	require.True(t, found)

	got, err := manager.Lookup(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
	assert.Zero(t, repo.getSessionCalls)
}

func TestSessionLookupUnknown(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newTestSessionManager(t)

	_, err := manager.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrSessionInvalid)
}

func TestSessionLookupFallsBackToDurableRow(t *testing.T) {
	ctx := context.Background()
	manager, repo, store := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	claims, err := manager.Issue(ctx, identity, "", "")
	require.NoError(t, err)

	// Simulate cache eviction; the row alone must still resolve.
	require.NoError(t, store.Delete(ctx, sessionKey(claims.SessionID)))

	got, err := manager.Lookup(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
	assert.Equal(t, 1, repo.getSessionCalls)

	// The projection is repopulated by the fallback.
	_, found, err := store.Get(ctx, sessionKey(claims.SessionID))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSessionStaleCacheRevalidated(t *testing.T) {
	ctx := context.Background()
	manager, repo, _ := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return base }

	claims, err := manager.Issue(ctx, identity, "", "")
	require.NoError(t, err)

	// Revoke the row but leave the projection behind, as a failed cache
	// delete during bulk revocation would.
	_, err = repo.DeleteLoginSessionsByIDs(ctx, []string{claims.SessionID})
	require.NoError(t, err)

	// Inside the trust window the stale projection still answers.
	manager.now = func() time.Time { return base.Add(trustWindow) }
	got, err := manager.Lookup(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, claims, got)

	// Past the window the lookup re-validates and the session is gone.
	manager.now = func() time.Time { return base.Add(trustWindow + time.Second) }
	_, err = manager.Lookup(ctx, claims.SessionID)
	assert.ErrorIs(t, err, shared.ErrSessionInvalid)
}

func TestSessionLookupExpired(t *testing.T) {
	ctx := context.Background()
	manager, repo, _ := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return base }

	claims, err := manager.Issue(ctx, identity, "", "")
	require.NoError(t, err)

	manager.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	_, err = manager.Lookup(ctx, claims.SessionID)
	assert.ErrorIs(t, err, shared.ErrSessionInvalid)
}

func TestSessionRevokeLeavesSiblings(t *testing.T) {
	ctx := context.Background()
	manager, repo, _ := newTestSessionManager(t)
	identity := repo.addIdentity(testIdentity(7, "alice@example.com"))

	first, err := manager.Issue(ctx, identity, "", "laptop")
	require.NoError(t, err)
	second, err := manager.Issue(ctx, identity, "", "phone")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, first.SessionID))

	_, err = manager.Lookup(ctx, first.SessionID)
	assert.ErrorIs(t, err, shared.ErrSessionInvalid)

	got, err := manager.Lookup(ctx, second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// Revoking again is a no-op.
	assert.NoError(t, manager.Revoke(ctx, first.SessionID))
}

func TestSessionRevokeAllForIdentity(t *testing.T) {
	ctx := context.Background()
	manager, repo, store := newTestSessionManager(t)
	alice := repo.addIdentity(testIdentity(7, "alice@example.com"))
	bob := repo.addIdentity(testIdentity(8, "bob@example.com"))

	var aliceSessions []Claims
	for range 3 {
		claims, err := manager.Issue(ctx, alice, "", "")
		require.NoError(t, err)
		aliceSessions = append(aliceSessions, claims)
	}
	bobClaims, err := manager.Issue(ctx, bob, "", "")
	require.NoError(t, err)

	require.NoError(t, manager.RevokeAllForIdentity(ctx, alice.ID))

	for _, claims := range aliceSessions {
		_, err := manager.Lookup(ctx, claims.SessionID)
		assert.ErrorIs(t, err, shared.ErrSessionInvalid)
		_, found, err := store.Get(ctx, sessionKey(claims.SessionID))
		require.NoError(t, err)
		assert.False(t, found, "cache projection should be gone")
	}

	got, err := manager.Lookup(ctx, bobClaims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, bobClaims, got)

	// No sessions left is not an error.
	assert.NoError(t, manager.RevokeAllForIdentity(ctx, alice.ID))
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// trustWindow bounds how long a cached session is served without consulting
// the durable store. A cache entry that survived a failed delete during bulk
// revocation can therefore outlive its row by at most this long.
const trustWindow = 5 * time.Second

type cachedSession struct {
	Claims    Claims `json:"claims"`
	ExpiresAt int64  `json:"expires_at"`
	CachedAt  int64  `json:"cached_at"`
}

// SessionManager issues, looks up and revokes sessions. Every session has a
// durable row in PostgreSQL (authoritative) and a cache projection keyed by
// session id (disposable).
type SessionManager struct {
	repo   Repository
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(repo Repository, store cache.Store, ttl time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{repo: repo, store: store, ttl: ttl, logger: logger, now: time.Now}
}

func sessionKey(id string) string {
	return "session:" + id
}

// TTL exposes the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for the identity: durable row first, then the
// cache projection. A failed cache write is tolerated; lookups fall back to
// the row.
func (m *SessionManager) Issue(ctx context.Context, identity *Identity, ip, userAgent string) (Claims, error) {
	now := m.now().UTC()
	session := Session{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		Role:       identity.RoleName,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
		IP:         ip,
		UserAgent:  userAgent,
	}
	if err := m.repo.CreateLoginSession(ctx, session); err != nil {
		return Claims{}, err
	}
	claims := Claims{
		SessionID:  session.ID,
		IdentityID: identity.ID,
		Email:      identity.Email,
		Role:       identity.RoleName,
	}
	if err := m.cacheSession(ctx, claims, session.ExpiresAt); err != nil {
		m.logger.Warn("session cache write failed", slog.String("session_id", session.ID), slog.Any("error", err))
	}
	return claims, nil
}

// Lookup resolves a session id to its claims. Cache-first; a cached entry
// older than the trust window is re-validated against the durable row so a
// revoked session cannot ride a stale projection. A definitive miss returns
// shared.ErrSessionInvalid.
func (m *SessionManager) Lookup(ctx context.Context, sessionID string) (Claims, error) {
	now := m.now().UTC()
	payload, found, err := m.store.Get(ctx, sessionKey(sessionID))
	if err == nil && found {
		var entry cachedSession
		if err := json.Unmarshal(payload, &entry); err == nil {
			if now.Unix() >= entry.ExpiresAt {
				_ = m.store.Delete(ctx, sessionKey(sessionID))
				return Claims{}, shared.ErrSessionInvalid
			}
			if now.Unix()-entry.CachedAt <= int64(trustWindow/time.Second) {
				return entry.Claims, nil
			}
			// Stale projection: confirm the row still exists.
			return m.lookupDurable(ctx, sessionID, now)
		}
	} else if err != nil {
		m.logger.Warn("session cache read failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return m.lookupDurable(ctx, sessionID, now)
}

func (m *SessionManager) lookupDurable(ctx context.Context, sessionID string, now time.Time) (Claims, error) {
	session, err := m.repo.GetLoginSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = m.store.Delete(ctx, sessionKey(sessionID))
			return Claims{}, shared.ErrSessionInvalid
		}
		return Claims{}, err
	}
	if now.After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, sessionKey(sessionID))
		return Claims{}, shared.ErrSessionInvalid
	}
	identity, err := m.repo.FindByID(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Claims{}, shared.ErrSessionInvalid
		}
		return Claims{}, err
	}
	claims := Claims{
		SessionID:  session.ID,
		IdentityID: session.IdentityID,
		Email:      identity.Email,
		Role:       session.Role,
	}
	if err := m.cacheSession(ctx, claims, session.ExpiresAt); err != nil {
		m.logger.Warn("session cache repopulate failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return claims, nil
}

func (m *SessionManager) cacheSession(ctx context.Context, claims Claims, expiresAt time.Time) error {
	entry := cachedSession{
		Claims:    claims,
		ExpiresAt: expiresAt.Unix(),
		CachedAt:  m.now().UTC().Unix(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ttl := expiresAt.Sub(m.now().UTC())
	if ttl <= 0 {
		return nil
	}
	return m.store.Set(ctx, sessionKey(claims.SessionID), payload, ttl)
}

// Revoke deletes one session, durable row and cache projection. Idempotent;
// sibling sessions are untouched.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if _, err := m.repo.DeleteLoginSessionsByIDs(ctx, []string{sessionID}); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		m.logger.Warn("session cache delete failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return nil
}

// RevokeAllForIdentity deletes every session for the identity. Durable rows
// go first and must succeed; cache deletions fan out concurrently and a
// failure there is logged, not surfaced, because lookups re-validate stale
// projections against the durable store.
func (m *SessionManager) RevokeAllForIdentity(ctx context.Context, identityID int64) error {
	sessions, err := m.repo.ListLoginSessionsByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	if _, err := m.repo.DeleteLoginSessionsByIDs(ctx, ids); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			if err := m.store.Delete(gctx, sessionKey(id)); err != nil {
				m.logger.Warn("session cache delete failed during bulk revoke",
					slog.String("session_id", id), slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

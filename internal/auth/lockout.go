package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
)

const (
	// LockoutThreshold is the failed-attempt count that triggers a lock.
	LockoutThreshold = 5
	// LockoutDuration is how long a triggered lock holds.
	LockoutDuration = 15 * time.Minute
)

// LockState reports whether an identity is currently locked out.
type LockState struct {
	Locked           bool
	RemainingSeconds int64
}

type lockoutRecord struct {
	LockedAt        int64 `json:"locked_at"`
	DurationSeconds int64 `json:"duration_seconds"`
}

// LockoutTracker tracks failed-attempt counts and lockout windows per
// identity key on the cache store. The attempt counter has no TTL and
// persists until explicitly cleared or until an expired lock is observed;
// lockout records expire logically and are removed lazily, taking the
// counter with them.
type LockoutTracker struct {
	store cache.Store
	now   func() time.Time
}

// NewLockoutTracker constructs a tracker.
func NewLockoutTracker(store cache.Store) *LockoutTracker {
	return &LockoutTracker{store: store, now: time.Now}
}

func attemptsKey(identityKey string) string {
	return "attempts:" + identityKey
}

func lockKey(identityKey string) string {
	return "lockout:" + identityKey
}

// CheckLock reads the lockout record for the identity. An expired record is
// treated as absent and deleted lazily; it never blocks access past its
// duration.
func (t *LockoutTracker) CheckLock(ctx context.Context, identityKey string) (LockState, error) {
	payload, found, err := t.store.Get(ctx, lockKey(identityKey))
	if err != nil {
		return LockState{}, err
	}
	if !found {
		return LockState{}, nil
	}
	var record lockoutRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		// A corrupt record must not lock anyone out; drop it.
		_ = t.store.Delete(ctx, lockKey(identityKey))
		return LockState{}, nil
	}
	until := record.LockedAt + record.DurationSeconds
	now := t.now().Unix()
	if now >= until {
		// Expiry ends the episode: the attempt counter resets with the lock,
		// so the next failure starts a fresh count of one.
		_ = t.store.Delete(ctx, lockKey(identityKey), attemptsKey(identityKey))
		return LockState{}, nil
	}
	return LockState{Locked: true, RemainingSeconds: until - now}, nil
}

// RecordFailure increments the attempt counter, initializing at 1.
func (t *LockoutTracker) RecordFailure(ctx context.Context, identityKey string) (int64, error) {
	return t.store.Incr(ctx, attemptsKey(identityKey))
}

// Lock writes a lockout record starting now. The record also carries a cache
// TTL for hygiene, but correctness relies only on the lazy expiry check.
func (t *LockoutTracker) Lock(ctx context.Context, identityKey string, duration time.Duration) error {
	record := lockoutRecord{
		LockedAt:        t.now().Unix(),
		DurationSeconds: int64(duration / time.Second),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, lockKey(identityKey), payload, duration)
}

// Clear deletes both the attempt counter and any lockout record. Called on
// successful authentication.
func (t *LockoutTracker) Clear(ctx context.Context, identityKey string) error {
	return t.store.Delete(ctx, attemptsKey(identityKey), lockKey(identityKey))
}

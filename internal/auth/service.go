package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// Notifier delivers fire-and-forget account messages. Delivery failure is
// reported as a boolean, never an error: no login flow depends on it.
type Notifier interface {
	LockoutNotice(ctx context.Context, email string, retryAfter time.Duration) bool
}

// Recorder counts authentication events for observability.
type Recorder interface {
	LoginOutcome(outcome string)
	LockoutTriggered()
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Claims    Claims
}

// Service composes the lockout tracker, password hasher, session manager and
// token codec into the login state machine.
type Service struct {
	repo     Repository
	hasher   *Hasher
	tokens   *TokenCodec
	lockouts *LockoutTracker
	sessions *SessionManager
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger
}

// NewService constructs the orchestrator. notifier and recorder may be nil.
func NewService(repo Repository, hasher *Hasher, tokens *TokenCodec, lockouts *LockoutTracker, sessions *SessionManager, notifier Notifier, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		lockouts: lockouts,
		sessions: sessions,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// Sessions exposes the session manager for collaborators that revoke
// sessions on privilege-relevant mutations.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Login runs the credential check behind the lockout gate.
//
// While a lock window is active the attempt is rejected with the remaining
// time; no credential check runs and no counter moves. A failed check
// increments the counter and, at the threshold, locks the identity; that
// attempt surfaces as locked, not as invalid credentials. Success clears the
// counter before any further precondition (verification, activation) is
// examined; those checks never touch lockout state.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	email = shared.NormalizeEmail(email)

	state, err := s.lockouts.CheckLock(ctx, email)
	if err != nil {
		return nil, shared.Internal(err)
	}
	if state.Locked {
		s.countOutcome("locked")
		return nil, &shared.LockedError{RemainingSeconds: state.RemainingSeconds}
	}

	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.countOutcome("invalid")
			return nil, shared.ErrInvalidCredentials
		}
		return nil, shared.Internal(err)
	}

	if !s.hasher.Compare(password, identity.PasswordHash) {
		count, err := s.lockouts.RecordFailure(ctx, email)
		if err != nil {
			return nil, shared.Internal(err)
		}
		if count >= LockoutThreshold {
			if err := s.lockouts.Lock(ctx, email, LockoutDuration); err != nil {
				return nil, shared.Internal(err)
			}
			if s.recorder != nil {
				s.recorder.LockoutTriggered()
			}
			s.countOutcome("locked")
			s.logger.Warn("account locked after repeated failures",
				slog.String("email", email), slog.Int64("attempts", count))
			if s.notifier != nil {
				s.notifier.LockoutNotice(ctx, email, LockoutDuration)
			}
			return nil, &shared.LockedError{RemainingSeconds: int64(LockoutDuration / time.Second)}
		}
		s.countOutcome("invalid")
		return nil, shared.ErrInvalidCredentials
	}

	if err := s.lockouts.Clear(ctx, email); err != nil {
		s.logger.Warn("lockout clear failed", slog.String("email", email), slog.Any("error", err))
	}

	if !identity.IsVerified {
		s.countOutcome("unverified")
		return nil, shared.ErrEmailNotVerified
	}
	if !identity.IsActive {
		s.countOutcome("disabled")
		return nil, shared.ErrAccountDisabled
	}

	claims, err := s.sessions.Issue(ctx, identity, ip, userAgent)
	if err != nil {
		return nil, shared.Internal(err)
	}
	token, err := s.tokens.Encode(claims, s.sessions.TTL())
	if err != nil {
		return nil, shared.Internal(err)
	}
	s.countOutcome("success")
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.sessions.TTL()),
		Claims:    claims,
	}, nil
}

// Authenticate resolves a bearer token to live session claims. The token
// proves possession; the session row decides validity.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return Claims{}, err
	}
	return s.sessions.Lookup(ctx, claims.SessionID)
}

// Logout revokes the session behind the token. Idempotent.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return shared.Internal(err)
	}
	return nil
}

// CheckLock reports the lockout state for an email without touching it.
func (s *Service) CheckLock(ctx context.Context, email string) (LockState, error) {
	state, err := s.lockouts.CheckLock(ctx, shared.NormalizeEmail(email))
	if err != nil {
		return LockState{}, shared.Internal(err)
	}
	return state, nil
}

func (s *Service) countOutcome(outcome string) {
	if s.recorder != nil {
		s.recorder.LoginOutcome(outcome)
	}
}

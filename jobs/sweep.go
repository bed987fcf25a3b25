package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-commerce/meridian-commerce/internal/jobs"
	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
)

// SessionSweeper deletes durable login-session rows past their expiry. The
// rows are already treated as absent by lookups; this is storage hygiene.
type SessionSweeper struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionSweeper constructs the sweeper. metrics may be nil.
func NewSessionSweeper(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweeper {
	return &SessionSweeper{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeSessionSweep tasks.
func (s *SessionSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track(TaskTypeSessionSweep)
	tag, err := s.pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < now()`)
	if err != nil {
		return tracker.End(err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("swept expired sessions", slog.Int64("deleted", n))
	}
	return tracker.End(nil)
}

// LockoutSweeper removes lockout records whose window has elapsed. Lockout
// correctness never depends on this; expired records are ignored lazily.
type LockoutSweeper struct {
	store   cache.Store
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewLockoutSweeper constructs the sweeper. metrics may be nil.
func NewLockoutSweeper(store cache.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *LockoutSweeper {
	return &LockoutSweeper{store: store, logger: logger, metrics: metrics, now: time.Now}
}

type lockoutRecord struct {
	LockedAt        int64 `json:"locked_at"`
	DurationSeconds int64 `json:"duration_seconds"`
}

// Handle processes TaskTypeLockoutSweep tasks.
func (s *LockoutSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track(TaskTypeLockoutSweep)
	keys, err := s.store.ScanKeysByPrefix(ctx, "lockout:")
	if err != nil {
		return tracker.End(err)
	}
	now := s.now().Unix()
	var removed int
	for _, key := range keys {
		payload, found, err := s.store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var record lockoutRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			_ = s.store.Delete(ctx, key)
			removed++
			continue
		}
		if now >= record.LockedAt+record.DurationSeconds {
			_ = s.store.Delete(ctx, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("swept expired lockouts", slog.Int("removed", removed))
	}
	return tracker.End(nil)
}

// Package notify delivers fire-and-forget account messages through the
// background job queue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-commerce/meridian-commerce/jobs"
)

// Mailer enqueues email tasks. Delivery is asynchronous; the boolean return
// only reports whether the message was accepted by the queue.
type Mailer struct {
	client *asynq.Client
	from   string
	logger *slog.Logger
}

// NewMailer constructs a Mailer on an asynq client.
func NewMailer(client *asynq.Client, from string, logger *slog.Logger) *Mailer {
	return &Mailer{client: client, from: from, logger: logger}
}

// LockoutNotice informs an account holder that repeated failed logins locked
// the account.
func (m *Mailer) LockoutNotice(ctx context.Context, email string, retryAfter time.Duration) bool {
	return m.enqueue(ctx, email, "Account temporarily locked",
		fmt.Sprintf("Your account was locked after repeated failed sign-in attempts. Try again in %d minutes.", int(retryAfter.Minutes())))
}

// SecurityAlert informs an account holder that all sessions were revoked.
func (m *Mailer) SecurityAlert(ctx context.Context, email, reason string) bool {
	return m.enqueue(ctx, email, "Security notice",
		"All active sessions for your account were signed out: "+reason)
}

func (m *Mailer) enqueue(ctx context.Context, to, subject, body string) bool {
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: to, From: m.from, Subject: subject, Body: body})
	if err != nil {
		m.logger.Warn("build email task", slog.Any("error", err))
		return false
	}
	if _, err := m.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)); err != nil {
		m.logger.Warn("enqueue email task", slog.String("to", to), slog.Any("error", err))
		return false
	}
	return true
}

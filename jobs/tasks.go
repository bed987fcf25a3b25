package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-commerce/meridian-commerce/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeSessionSweep removes expired durable login-session rows.
	TaskTypeSessionSweep = "sessions:sweep"
	// TaskTypeLockoutSweep removes expired lockout records from the cache.
	TaskTypeLockoutSweep = "lockouts:sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSessionSweepTask constructs the session sweep task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionSweep, nil)
}

// NewLockoutSweepTask constructs the lockout sweep task.
func NewLockoutSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLockoutSweep, nil)
}

// Mailer sends queued emails over SMTP. Body templating happens upstream;
// this handler only delivers.
type Mailer struct {
	addr    string
	metrics *jobmetrics.Metrics
}

// NewMailerHandler constructs the SMTP delivery handler. metrics may be nil.
func NewMailerHandler(host string, port int, metrics *jobmetrics.Metrics) *Mailer {
	return &Mailer{addr: fmt.Sprintf("%s:%d", host, port), metrics: metrics}
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (m *Mailer) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	tracker := m.metrics.Track(TaskTypeSendEmail)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	msg := []byte("To: " + payload.To + "\r\n" +
		"From: " + payload.From + "\r\n" +
		"Subject: " + payload.Subject + "\r\n" +
		"\r\n" + payload.Body + "\r\n")
	return tracker.End(smtp.SendMail(m.addr, nil, payload.From, []string{payload.To}, msg))
}

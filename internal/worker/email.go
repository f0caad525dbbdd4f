// Package worker runs background jobs: email delivery from the Redis queue,
// scheduled purges and attendee archiving.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/notifications"
	"github.com/spherelink/backend/pkg/queue"
)

// errDiscard marks jobs that can never succeed and must not be retried.
var errDiscard = errors.New("discard job")

// JobQueue is the subset of *queue.Queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// DeliveryLog records delivery outcomes on email_logs rows.
type DeliveryLog interface {
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailProcessor sends queued notification emails.
type EmailProcessor struct {
	queue   JobQueue
	mailer  notifications.Mailer
	logs    DeliveryLog
	logger  *zap.Logger
	timeout time.Duration
	backoff time.Duration
	now     func() time.Time
}

// NewEmailProcessor creates an email job processor. dequeueTimeout bounds each BLPOP.
func NewEmailProcessor(q JobQueue, mailer notifications.Mailer, logs DeliveryLog, dequeueTimeout time.Duration, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	return &EmailProcessor{
		queue:   q,
		mailer:  mailer,
		logs:    logs,
		logger:  logger,
		timeout: dequeueTimeout,
		backoff: queue.RetryBackoff,
		now:     time.Now,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: unknown job type %q", errDiscard, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errDiscard, err)
	}

	err := p.mailer.Send(ctx, notifications.Message{To: payload.RecipientEmail, Subject: payload.Subject, Body: payload.Body})
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(payload.EmailType, "failed").Inc()
		if mErr := p.logs.MarkFailed(ctx, payload.EmailLogID, err.Error()); mErr != nil {
			p.logger.Warn("mark email failed", zap.String("email_log_id", payload.EmailLogID.String()), zap.Error(mErr))
		}
		return fmt.Errorf("send email: %w", err)
	}

	metrics.EmailsTotal.WithLabelValues(payload.EmailType, "sent").Inc()
	if err := p.logs.MarkSent(ctx, payload.EmailLogID, p.now()); err != nil {
		// the mail went out; a retry would send it twice
		p.logger.Warn("mark email sent", zap.String("email_log_id", payload.EmailLogID.String()), zap.Error(err))
	}
	p.logger.Info("email sent",
		zap.String("email_log_id", payload.EmailLogID.String()),
		zap.String("email_type", payload.EmailType))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if errors.Is(err, errDiscard) {
				p.logger.Error("job discarded", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

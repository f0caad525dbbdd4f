package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for notification email jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail JobType = "email"
)

// EmailPayload is the payload for email jobs. EmailLogID points at the
// email_logs row the worker updates after delivery.
type EmailPayload struct {
	EmailLogID     uuid.UUID  `json:"email_log_id"`
	EmailType      string     `json:"email_type"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) enqueue(ctx context.Context, name string, typ JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Queue:     name,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, name, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	return job, nil
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	job, err := q.enqueue(ctx, QueueEmails, JobTypeEmail, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued email job", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType))
	return nil
}

// Dequeue blocks up to timeout for a job on any of the given queues
// (QueueEmails when none are given). It returns a nil job on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (*Job, error) {
	if len(queues) == 0 {
		queues = []string{QueueEmails}
	}
	result, err := q.client.BLPop(ctx, timeout, queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	name := job.Queue
	if name == "" {
		name = QueueEmails
	}
	if err := q.client.RPush(ctx, name, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Len returns the number of pending jobs in a queue.
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	return q.client.LLen(ctx, name).Result()
}

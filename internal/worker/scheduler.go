package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled task.
type Job func(ctx context.Context) error

// Scheduler runs Jobs on cron specs. Overlapping runs of one job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler creates a scheduler; each run gets at most timeout.
func NewScheduler(timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers job under spec. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		s.logger.Info("scheduled job disabled", zap.String("job", name))
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("scheduled job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Len returns the number of enabled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

// Purger deletes expired events.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// InvitationExpirer marks overdue invitations expired.
type InvitationExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// PurgeExpiredJob deletes events dated before the run time.
func PurgeExpiredJob(p Purger, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		n, err := p.PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("purged expired events", zap.Int64("count", n))
		}
		return nil
	}
}

// ExpireInvitationsJob flips overdue pending invitations to expired.
func ExpireInvitationsJob(e InvitationExpirer, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		n, err := e.ExpireStale(ctx, time.Now())
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("expired stale invitations", zap.Int64("count", n))
		}
		return nil
	}
}

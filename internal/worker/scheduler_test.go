package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerFunc func(ctx context.Context, now time.Time) (int64, error)

func (f purgerFunc) PurgeExpired(ctx context.Context, now time.Time) (int64, error) { return f(ctx, now) }

type expirerFunc func(ctx context.Context, now time.Time) (int64, error)

func (f expirerFunc) ExpireStale(ctx context.Context, now time.Time) (int64, error) { return f(ctx, now) }

func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler(time.Second, nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("purge-expired", "@daily", noop))
	require.NoError(t, s.Add("disabled", "", noop))
	assert.Error(t, s.Add("broken", "not a spec", noop))
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerWrapBoundsRun(t *testing.T) {
	s := NewScheduler(50*time.Millisecond, nil)
	var deadline time.Time
	s.wrap("overlap", func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return errors.New("logged, not returned")
	})()
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestJobsCallServices(t *testing.T) {
	var purgedAt, expiredAt time.Time
	purge := PurgeExpiredJob(purgerFunc(func(_ context.Context, now time.Time) (int64, error) {
		purgedAt = now
		return 3, nil
	}), nil)
	expire := ExpireInvitationsJob(expirerFunc(func(_ context.Context, now time.Time) (int64, error) {
		expiredAt = now
		return 0, errors.New("db down")
	}), nil)

	require.NoError(t, purge(context.Background()))
	assert.False(t, purgedAt.IsZero())
	assert.EqualError(t, expire(context.Background()), "db down")
	assert.False(t, expiredAt.IsZero())
}

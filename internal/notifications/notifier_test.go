package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/queue"
)

type memLogs struct {
	mu        sync.Mutex
	logs      map[uuid.UUID]*models.EmailLog
	createErr error
}

func newMemLogs() *memLogs {
	return &memLogs{logs: map[uuid.UUID]*models.EmailLog{}}
}

func (m *memLogs) Create(_ context.Context, l *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	l.ID = uuid.New()
	l.Status = models.EmailLogStatusPending
	l.CreatedAt = time.Now()
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *memLogs) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	l.Status, l.SentAt, l.ErrorMessage = models.EmailLogStatusSent, &at, ""
	return nil
}

func (m *memLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	l.Status, l.ErrorMessage = models.EmailLogStatusFailed, reason
	return nil
}

func (m *memLogs) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EmailLog
	for _, l := range m.logs {
		if l.EventID != nil && *l.EventID == eventID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLogs) only(t *testing.T) *models.EmailLog {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.logs, 1)
	for _, l := range m.logs {
		return l
	}
	return nil
}

type brokenQueue struct{}

func (brokenQueue) EnqueueEmail(context.Context, queue.EmailPayload) error {
	return errors.New("redis down")
}

func newRedisQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, nil)
}

func dequeueEmail(t *testing.T, q *queue.Queue) queue.EmailPayload {
	t.Helper()
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	var p queue.EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	return p
}

func TestRegistrationConfirmedQueuesEmail(t *testing.T) {
	logs, q := newMemLogs(), newRedisQueue(t)
	n := NewNotifier(logs, q, nil)
	e := &models.Event{ID: uuid.New(), Title: "Trail run", Date: time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 90, Location: "North gate", Requirements: "Water bottle"}

	n.RegistrationConfirmed(context.Background(), e, &access.Snapshot{UserID: uuid.New(), Username: "alice", Email: "alice@example.com"})

	l := logs.only(t)
	assert.Equal(t, models.EmailTypeRegistrationConfirmation, l.EmailType)
	require.NotNil(t, l.EventID)
	assert.Equal(t, e.ID, *l.EventID)

	p := dequeueEmail(t, q)
	assert.Equal(t, l.ID, p.EmailLogID)
	assert.Equal(t, "alice@example.com", p.RecipientEmail)
	assert.Equal(t, "Registration confirmed: Trail run", p.Subject)
	assert.Contains(t, p.Body, "North gate")
	assert.Contains(t, p.Body, "Water bottle")
}

func TestInvitationSentIncludesLink(t *testing.T) {
	logs, q := newMemLogs(), newRedisQueue(t)
	n := NewNotifier(logs, q, nil)
	org := &models.Organization{ID: uuid.New(), Name: "Chess Club"}
	inv := &models.Invitation{Email: "bob@example.com", OrganizationID: org.ID, Role: models.RoleStaff, ExpiresAt: time.Now().Add(time.Hour)}

	n.InvitationSent(context.Background(), inv, org, "https://app.example.com/invitations/tok")

	l := logs.only(t)
	require.NotNil(t, l.OrganizationID)
	assert.Equal(t, org.ID, *l.OrganizationID)
	assert.Nil(t, l.EventID)
	p := dequeueEmail(t, q)
	assert.Contains(t, p.Body, "https://app.example.com/invitations/tok")
	assert.Contains(t, p.Body, "staff")
}

func TestContactReceivedAlertsAdmin(t *testing.T) {
	logs, q := newMemLogs(), newRedisQueue(t)
	n := NewNotifier(logs, q, nil)
	m := &models.ContactMessage{ID: uuid.New(), Email: "locked@example.com", Subject: "Cannot sign in",
		Message: "My organization was deactivated.", CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)}

	n.ContactReceived(context.Background(), m, "admin@example.com")

	l := logs.only(t)
	assert.Equal(t, models.EmailTypeContactAlert, l.EmailType)
	assert.Nil(t, l.EventID)
	assert.Nil(t, l.OrganizationID)
	p := dequeueEmail(t, q)
	assert.Equal(t, "admin@example.com", p.RecipientEmail)
	assert.Equal(t, "Contact request: Cannot sign in", p.Subject)
	assert.Contains(t, p.Body, "locked@example.com")
	assert.Contains(t, p.Body, "2026-02-03 04:05:06")
	assert.Contains(t, p.Body, "My organization was deactivated.")
}

func TestEnqueueFailureMarksLogFailed(t *testing.T) {
	logs := newMemLogs()
	n := NewNotifier(logs, brokenQueue{}, nil)
	org := &models.Organization{ID: uuid.New(), Name: "Chess Club"}

	n.MemberAdded(context.Background(), org, &models.User{Username: "carol", Email: "carol@example.com"}, models.RoleMember)

	l := logs.only(t)
	assert.Equal(t, models.EmailLogStatusFailed, l.Status)
	assert.Equal(t, "enqueue failed", l.ErrorMessage)
}

func TestLogFailureSkipsEnqueue(t *testing.T) {
	logs, q := newMemLogs(), newRedisQueue(t)
	logs.createErr = errors.New("db down")
	n := NewNotifier(logs, q, nil)

	n.MemberAdded(context.Background(), &models.Organization{ID: uuid.New()}, &models.User{Email: "dan@example.com"}, models.RoleMember)

	pending, err := q.Len(context.Background(), queue.QueueEmails)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRegistrationConfirmedWithoutEmailIsNoop(t *testing.T) {
	logs := newMemLogs()
	n := NewNotifier(logs, brokenQueue{}, nil)
	n.RegistrationConfirmed(context.Background(), &models.Event{ID: uuid.New()}, &access.Snapshot{UserID: uuid.New()})
	assert.Empty(t, logs.logs)
}

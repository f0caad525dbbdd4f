package events

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/config"
	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

type memStore struct {
	events map[uuid.UUID]*models.Event
	regs   map[uuid.UUID][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{events: map[uuid.UUID]*models.Event{}, regs: map[uuid.UUID][]uuid.UUID{}}
}

func (m *memStore) withStats(e *models.Event) models.EventWithStats {
	return models.EventWithStats{Event: *e, Stats: models.NewEventStats(e.MaxCapacity, len(m.regs[e.ID]))}
}

func (m *memStore) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetWithStats(_ context.Context, id uuid.UUID) (*models.EventWithStats, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	ev := m.withStats(e)
	return &ev, nil
}

func (m *memStore) UpdateWithinCapacity(_ context.Context, e *models.Event) error {
	if _, ok := m.events[e.ID]; !ok {
		return apperr.ErrNotFound
	}
	if e.MaxCapacity < len(m.regs[e.ID]) {
		return apperr.ErrCapacity
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.events[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memStore) List(_ context.Context, scope access.EventScope, _ ListFilter) ([]models.EventWithStats, error) {
	out := []models.EventWithStats{}
	for _, e := range m.events {
		if scope.Allows(e.OrganizationID) {
			out = append(out, m.withStats(e))
		}
	}
	return out, nil
}

func (m *memStore) Upcoming(_ context.Context, scope access.EventScope, now time.Time) ([]models.EventWithStats, error) {
	out := []models.EventWithStats{}
	for _, e := range m.events {
		if scope.Allows(e.OrganizationID) && !e.Date.Before(now) {
			out = append(out, m.withStats(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) CreatedBy(_ context.Context, userID uuid.UUID) ([]models.EventWithStats, error) {
	out := []models.EventWithStats{}
	for _, e := range m.events {
		if e.CreatedBy == userID {
			out = append(out, m.withStats(e))
		}
	}
	return out, nil
}

func (m *memStore) RegisteredBy(_ context.Context, userID uuid.UUID) ([]models.EventWithStats, error) {
	out := []models.EventWithStats{}
	for id, users := range m.regs {
		for _, u := range users {
			if u == userID {
				out = append(out, m.withStats(m.events[id]))
			}
		}
	}
	return out, nil
}

func (m *memStore) SetImageKey(_ context.Context, id uuid.UUID, key string) error {
	e, ok := m.events[id]
	if !ok {
		return apperr.ErrNotFound
	}
	e.ImageKey = key
	return nil
}

func (m *memStore) Expired(_ context.Context, now time.Time) ([]models.Event, error) {
	var out []models.Event
	for _, e := range m.events {
		if e.Date.Before(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, _ := m.Expired(ctx, now)
	for _, e := range expired {
		delete(m.events, e.ID)
	}
	return int64(len(expired)), nil
}

func (m *memStore) DeleteIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	for _, id := range ids {
		delete(m.events, id)
	}
	return int64(len(ids)), nil
}

func (m *memStore) IsRegistered(_ context.Context, userID, eventID uuid.UUID) (bool, error) {
	for _, u := range m.regs[eventID] {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Attendees(_ context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	var out []models.Attendee
	for _, u := range m.regs[eventID] {
		out = append(out, models.Attendee{UserID: u})
	}
	return out, nil
}

type fakeSigner struct{}

func (fakeSigner) PresignImageUpload(_ context.Context, key, _ string) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=put", nil
}

func (fakeSigner) PresignImageDownload(_ context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=get", nil
}

func (fakeSigner) PresignExpire() time.Duration { return 15 * time.Minute }

var limits = config.EventsConfig{MinTitleLen: 3, MinDescriptionLen: 10, MinLocationLen: 3, MinDuration: 15, MinCapacity: 1, DefaultCapacity: 100}

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store, store, fakeSigner{}, limits, nil)
	svc.now = func() time.Time { return now }
	return svc, store
}

func snapshot(role models.Role, orgID uuid.UUID) *access.Snapshot {
	return &access.Snapshot{UserID: uuid.New(), Grants: []access.Grant{
		{OrganizationID: orgID, Role: role, Active: true, OrganizationActive: true},
	}}
}

func validInput() Input {
	return Input{
		Title:           "Morning Run",
		Description:     "Five kilometres around the lake",
		Date:            now.Add(48 * time.Hour),
		DurationMinutes: 60,
		Location:        "North Gate",
		EventType:       models.EventSports,
		MaxCapacity:     4,
	}
}

func TestCreateSetsOfficialFromRole(t *testing.T) {
	svc, _ := newTestService()
	orgID := uuid.New()

	in := validInput()
	in.IsOfficial = false
	staff, err := svc.Create(context.Background(), snapshot(models.RoleStaff, orgID), in)
	require.NoError(t, err)
	assert.True(t, staff.IsOfficial)
	require.NotNil(t, staff.OrganizationID)
	assert.Equal(t, orgID, *staff.OrganizationID)

	in.IsOfficial = true
	member, err := svc.Create(context.Background(), snapshot(models.RoleMember, orgID), in)
	require.NoError(t, err)
	assert.False(t, member.IsOfficial)
	assert.Equal(t, 4, member.Stats.AvailableSpots)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	p := snapshot(models.RoleMember, uuid.New())

	_, err := svc.Create(context.Background(), p, Input{
		Title:           "ab",
		Description:     "short",
		Date:            now.Add(-time.Hour),
		DurationMinutes: 5,
		Location:        "x",
		EventType:       "party",
		MaxCapacity:     -1,
	})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "description", "date", "duration_minutes", "location", "event_type", "max_capacity"} {
		assert.Contains(t, verr.Fields, field)
	}

	in := validInput()
	in.MaxCapacity = 0
	in.EventType = ""
	ev, err := svc.Create(context.Background(), p, in)
	require.NoError(t, err)
	assert.Equal(t, 100, ev.MaxCapacity)
	assert.Equal(t, models.EventOther, ev.EventType)
}

func TestCreateWithoutOrganization(t *testing.T) {
	svc, _ := newTestService()
	ev, err := svc.Create(context.Background(), &access.Snapshot{UserID: uuid.New()}, validInput())
	require.NoError(t, err)
	assert.Nil(t, ev.OrganizationID)

	_, err = svc.Create(context.Background(), nil, validInput())
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func ptr[T any](v T) *T { return &v }

func TestUpdateRejectsCapacityBelowRegistrations(t *testing.T) {
	svc, store := newTestService()
	creator := snapshot(models.RoleMember, uuid.New())
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)
	store.regs[ev.ID] = []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{MaxCapacity: ptr(2), Title: ptr("Renamed")})
	assert.ErrorIs(t, err, apperr.ErrCapacity)
	assert.Equal(t, "Morning Run", store.events[ev.ID].Title)
	assert.Equal(t, 4, store.events[ev.ID].MaxCapacity)

	updated, err := svc.Update(context.Background(), creator, ev.ID, Patch{MaxCapacity: ptr(3), Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.Stats.IsFull)
}

func TestUpdateMergesOmittedFields(t *testing.T) {
	svc, store := newTestService()
	creator := snapshot(models.RoleMember, uuid.New())
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), creator, ev.ID, Patch{Location: ptr("South Gate")})
	require.NoError(t, err)
	assert.Equal(t, "South Gate", updated.Location)
	assert.Equal(t, "Morning Run", updated.Title)
	assert.Equal(t, "Five kilometres around the lake", updated.Description)
	assert.Equal(t, 4, updated.MaxCapacity)
	assert.Equal(t, models.EventSports, updated.EventType)

	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{Title: ptr("ab")})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.NotContains(t, verr.Fields, "description")

	store.events[ev.ID].Date = now.Add(-time.Hour)
	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{Requirements: ptr("Bring water")})
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{Date: ptr(now.Add(-time.Minute))})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateCreatorOnlyAndOfficialFlag(t *testing.T) {
	svc, store := newTestService()
	orgID := uuid.New()
	creator := snapshot(models.RoleStaff, orgID)
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)
	require.True(t, ev.IsOfficial)

	_, err = svc.Update(context.Background(), snapshot(models.RoleOrgAdmin, orgID), ev.ID, Patch{Title: ptr("Hijacked")})
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{Title: ptr("Evening Run")})
	require.NoError(t, err)
	assert.True(t, store.events[ev.ID].IsOfficial)

	_, err = svc.Update(context.Background(), creator, ev.ID, Patch{IsOfficial: ptr(false)})
	require.NoError(t, err)
	assert.False(t, store.events[ev.ID].IsOfficial)

	member := snapshot(models.RoleMember, orgID)
	own, err := svc.Create(context.Background(), member, validInput())
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), member, own.ID, Patch{IsOfficial: ptr(true)})
	require.NoError(t, err)
	assert.False(t, store.events[own.ID].IsOfficial)
}

func TestUpdateFillsMissingOrganization(t *testing.T) {
	svc, store := newTestService()
	lone := &access.Snapshot{UserID: uuid.New()}
	ev, err := svc.Create(context.Background(), lone, validInput())
	require.NoError(t, err)

	orgID := uuid.New()
	lone.Grants = []access.Grant{{OrganizationID: orgID, Role: models.RoleMember, Active: true, OrganizationActive: true}}
	_, err = svc.Update(context.Background(), lone, ev.ID, Patch{})
	require.NoError(t, err)
	require.NotNil(t, store.events[ev.ID].OrganizationID)
	assert.Equal(t, orgID, *store.events[ev.ID].OrganizationID)
}

func TestDeletePermissions(t *testing.T) {
	svc, store := newTestService()
	orgID := uuid.New()
	creator := snapshot(models.RoleMember, orgID)
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), snapshot(models.RoleMember, orgID), ev.ID), apperr.ErrPermission)
	require.NoError(t, svc.Delete(context.Background(), snapshot(models.RoleStaff, orgID), ev.ID))
	assert.Empty(t, store.events)
	assert.ErrorIs(t, svc.Delete(context.Background(), creator, ev.ID), apperr.ErrNotFound)
}

func TestGetAppliesVisibility(t *testing.T) {
	svc, store := newTestService()
	orgA, orgB := uuid.New(), uuid.New()
	creator := snapshot(models.RoleMember, orgA)
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)
	viewer := snapshot(models.RoleMember, orgA)
	store.regs[ev.ID] = []uuid.UUID{viewer.UserID}
	store.events[ev.ID].ImageKey = "events/x.png"

	d, err := svc.Get(context.Background(), viewer, ev.ID)
	require.NoError(t, err)
	assert.True(t, d.Registered)
	assert.False(t, d.CanEdit)
	assert.Equal(t, "https://bucket.example.com/events/x.png?sig=get", d.ImageURL)

	_, err = svc.Get(context.Background(), snapshot(models.RoleMember, orgB), ev.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	d, err = svc.Get(context.Background(), &access.Snapshot{UserID: uuid.New(), IsSuperuser: true}, ev.ID)
	require.NoError(t, err)
	assert.True(t, d.CanDelete)
}

func TestRegistrationsCreatorOnly(t *testing.T) {
	svc, store := newTestService()
	orgID := uuid.New()
	creator := snapshot(models.RoleMember, orgID)
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)
	store.regs[ev.ID] = []uuid.UUID{uuid.New()}

	list, err := svc.Registrations(context.Background(), creator, ev.ID)
	require.NoError(t, err)
	assert.Len(t, list.Attendees, 1)
	assert.Equal(t, 1, list.Event.Stats.CurrentRegistrations)

	_, err = svc.Registrations(context.Background(), snapshot(models.RoleStaff, orgID), ev.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestImageUploadURL(t *testing.T) {
	svc, store := newTestService()
	creator := snapshot(models.RoleMember, uuid.New())
	ev, err := svc.Create(context.Background(), creator, validInput())
	require.NoError(t, err)

	up, err := svc.ImageUploadURL(context.Background(), creator, ev.ID, "image/png")
	require.NoError(t, err)
	assert.Equal(t, store.events[ev.ID].ImageKey, up.Key)
	assert.Equal(t, now.Add(15*time.Minute), up.ExpiresAt)

	_, err = svc.ImageUploadURL(context.Background(), creator, ev.ID, "application/pdf")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

type flakyArchiver struct {
	fail     uuid.UUID
	archived []uuid.UUID
}

func (a *flakyArchiver) ArchiveAttendees(_ context.Context, e *models.Event) error {
	if e.ID == a.fail {
		return errors.New("bucket unavailable")
	}
	a.archived = append(a.archived, e.ID)
	return nil
}

func TestPurgeExpired(t *testing.T) {
	svc, store := newTestService()
	past1 := &models.Event{Date: now.Add(-48 * time.Hour), MaxCapacity: 1}
	past2 := &models.Event{Date: now.Add(-time.Hour), MaxCapacity: 1}
	future := &models.Event{Date: now.Add(time.Hour), MaxCapacity: 1}
	for _, e := range []*models.Event{past1, past2, future} {
		require.NoError(t, store.Create(context.Background(), e))
	}

	archiver := &flakyArchiver{fail: past2.ID}
	svc.SetArchiver(archiver)
	n, err := svc.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []uuid.UUID{past1.ID}, archiver.archived)
	assert.Contains(t, store.events, past2.ID)

	svc.SetArchiver(nil)
	n, err = svc.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.events, 1)
	assert.Contains(t, store.events, future.ID)
}

func TestUpcomingAndMine(t *testing.T) {
	svc, store := newTestService()
	me := &access.Snapshot{UserID: uuid.New()}
	ev, err := svc.Create(context.Background(), me, validInput())
	require.NoError(t, err)
	old := &models.Event{Date: now.Add(-time.Hour), MaxCapacity: 1, CreatedBy: uuid.New()}
	require.NoError(t, store.Create(context.Background(), old))
	store.regs[old.ID] = []uuid.UUID{me.UserID}
	otherOrg := uuid.New()
	hidden := &models.Event{Date: now.Add(time.Hour), MaxCapacity: 1, CreatedBy: uuid.New(), OrganizationID: &otherOrg}
	require.NoError(t, store.Create(context.Background(), hidden))

	up, err := svc.Upcoming(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, ev.ID, up[0].ID)

	up, err = svc.Upcoming(context.Background(), snapshot(models.RoleMember, otherOrg))
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, hidden.ID, up[0].ID)

	mine, err := svc.Mine(context.Background(), me)
	require.NoError(t, err)
	assert.Len(t, mine.Created, 1)
	require.Len(t, mine.Registered, 1)
	assert.Equal(t, old.ID, mine.Registered[0].ID)
}

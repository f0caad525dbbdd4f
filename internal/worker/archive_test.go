package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/models"
)

type attendeeMap map[uuid.UUID][]models.Attendee

func (m attendeeMap) Attendees(_ context.Context, id uuid.UUID) ([]models.Attendee, error) {
	return m[id], nil
}

type recordingUploader struct {
	keys   []string
	bodies []string
	err    error
}

func (u *recordingUploader) UploadArchive(_ context.Context, key string, body io.Reader) error {
	if u.err != nil {
		return u.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	u.bodies = append(u.bodies, string(b))
	return nil
}

func TestArchiveAttendees(t *testing.T) {
	e := &models.Event{ID: uuid.MustParse("4b0f64e2-95a4-4d7a-9d55-2c3b2d8f0a11"), Date: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	empty := &models.Event{ID: uuid.New(), Date: e.Date}
	src := attendeeMap{e.ID: {
		{Name: "Alice Smith", Email: "alice@example.com"},
		{Name: "Bob, Jr.", Email: "bob@example.com"},
	}}
	up := &recordingUploader{}
	a := NewS3Archiver(src, up, nil)

	require.NoError(t, a.ArchiveAttendees(context.Background(), e))
	require.NoError(t, a.ArchiveAttendees(context.Background(), empty))

	require.Len(t, up.keys, 1)
	assert.Equal(t, "archives/4b0f64e2-95a4-4d7a-9d55-2c3b2d8f0a11/attendees-20260314.csv", up.keys[0])
	assert.Equal(t, "Name,Email\nAlice Smith,alice@example.com\n\"Bob, Jr.\",bob@example.com\n", up.bodies[0])
}

func TestArchiveAttendeesUploadError(t *testing.T) {
	e := &models.Event{ID: uuid.New()}
	a := NewS3Archiver(attendeeMap{e.ID: {{Name: "A", Email: "a@example.com"}}}, &recordingUploader{err: errors.New("access denied")}, nil)
	assert.EqualError(t, a.ArchiveAttendees(context.Background(), e), "access denied")
}

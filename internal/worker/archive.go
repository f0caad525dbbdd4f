package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/internal/registrations"
	"github.com/spherelink/backend/pkg/storage"
)

// AttendeeSource lists an event's attendees.
type AttendeeSource interface {
	Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// ArchiveUploader stores an archive object.
type ArchiveUploader interface {
	UploadArchive(ctx context.Context, key string, body io.Reader) error
}

// S3Archiver uploads an event's attendee list as CSV before the event is purged.
type S3Archiver struct {
	attendees AttendeeSource
	uploader  ArchiveUploader
	logger    *zap.Logger
}

// NewS3Archiver creates an archiver.
func NewS3Archiver(attendees AttendeeSource, uploader ArchiveUploader, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archiver{attendees: attendees, uploader: uploader, logger: logger}
}

// ArchiveAttendees writes archives/{event_id}/attendees-{date}.csv. Events without attendees are skipped.
func (a *S3Archiver) ArchiveAttendees(ctx context.Context, e *models.Event) error {
	list, err := a.attendees.Attendees(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}
	if len(list) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := registrations.WriteCSV(&buf, list); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	key := storage.ArchiveKey(e.ID, e.Date)
	if err := a.uploader.UploadArchive(ctx, key, &buf); err != nil {
		return err
	}
	a.logger.Debug("archived attendees", zap.String("event_id", e.ID.String()), zap.Int("count", len(list)))
	return nil
}

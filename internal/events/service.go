package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/config"
	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/storage"
)

// Store is the event persistence the service needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetWithStats(ctx context.Context, id uuid.UUID) (*models.EventWithStats, error)
	UpdateWithinCapacity(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope access.EventScope, f ListFilter) ([]models.EventWithStats, error)
	Upcoming(ctx context.Context, scope access.EventScope, now time.Time) ([]models.EventWithStats, error)
	CreatedBy(ctx context.Context, userID uuid.UUID) ([]models.EventWithStats, error)
	RegisteredBy(ctx context.Context, userID uuid.UUID) ([]models.EventWithStats, error)
	SetImageKey(ctx context.Context, id uuid.UUID, key string) error
	Expired(ctx context.Context, now time.Time) ([]models.Event, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Attendance answers registration questions about events.
type Attendance interface {
	IsRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// ImageSigner issues presigned URLs for event images.
type ImageSigner interface {
	PresignImageUpload(ctx context.Context, key, contentType string) (string, error)
	PresignImageDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// Archiver stores a copy of an event's attendees before the event is purged.
type Archiver interface {
	ArchiveAttendees(ctx context.Context, e *models.Event) error
}

// Service implements the event registry.
type Service struct {
	store      Store
	attendance Attendance
	images     ImageSigner
	archiver   Archiver
	limits     config.EventsConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an event service. images may be nil when S3 is not configured.
func NewService(store Store, attendance Attendance, images ImageSigner, limits config.EventsConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, attendance: attendance, images: images, limits: limits, logger: logger, now: time.Now}
}

// SetArchiver enables attendee archiving during PurgeExpired.
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// Input holds the editable event fields.
type Input struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Date            time.Time        `json:"date"`
	DurationMinutes int              `json:"duration_minutes"`
	Location        string           `json:"location"`
	Requirements    string           `json:"requirements"`
	EventType       models.EventType `json:"event_type"`
	MaxCapacity     int              `json:"max_capacity"`
	IsOfficial      bool             `json:"is_official"`
}

func (in *Input) normalize(defaultCapacity int) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Requirements = strings.TrimSpace(in.Requirements)
	if in.EventType == "" {
		in.EventType = models.EventOther
	}
	if in.MaxCapacity == 0 {
		in.MaxCapacity = defaultCapacity
	}
}

// Patch holds the fields of a partial update. Nil fields keep the stored value.
type Patch struct {
	Title           *string           `json:"title"`
	Description     *string           `json:"description"`
	Date            *time.Time        `json:"date"`
	DurationMinutes *int              `json:"duration_minutes"`
	Location        *string           `json:"location"`
	Requirements    *string           `json:"requirements"`
	EventType       *models.EventType `json:"event_type"`
	MaxCapacity     *int              `json:"max_capacity"`
	IsOfficial      *bool             `json:"is_official"`
}

// merge overlays pt on the stored event.
func (pt Patch) merge(e *models.Event) Input {
	in := Input{
		Title:           e.Title,
		Description:     e.Description,
		Date:            e.Date,
		DurationMinutes: e.DurationMinutes,
		Location:        e.Location,
		Requirements:    e.Requirements,
		EventType:       e.EventType,
		MaxCapacity:     e.MaxCapacity,
		IsOfficial:      e.IsOfficial,
	}
	if pt.Title != nil {
		in.Title = *pt.Title
	}
	if pt.Description != nil {
		in.Description = *pt.Description
	}
	if pt.Date != nil {
		in.Date = *pt.Date
	}
	if pt.DurationMinutes != nil {
		in.DurationMinutes = *pt.DurationMinutes
	}
	if pt.Location != nil {
		in.Location = *pt.Location
	}
	if pt.Requirements != nil {
		in.Requirements = *pt.Requirements
	}
	if pt.EventType != nil {
		in.EventType = *pt.EventType
	}
	if pt.MaxCapacity != nil {
		in.MaxCapacity = *pt.MaxCapacity
	}
	if pt.IsOfficial != nil {
		in.IsOfficial = *pt.IsOfficial
	}
	return in
}

// validate checks in. The past-date rule applies only when checkDate is set,
// so an event that already started can still have other fields corrected.
func (s *Service) validate(in Input, checkDate bool) error {
	verr := &apperr.ValidationError{}
	minLen := func(field, value string, n int) {
		if utf8.RuneCountInString(value) < n {
			verr.Add(field, fmt.Sprintf("must be at least %d characters", n))
		}
	}
	minLen("title", in.Title, s.limits.MinTitleLen)
	minLen("description", in.Description, s.limits.MinDescriptionLen)
	minLen("location", in.Location, s.limits.MinLocationLen)
	if utf8.RuneCountInString(in.Title) > 200 {
		verr.Add("title", "must be at most 200 characters")
	}
	if utf8.RuneCountInString(in.Location) > 200 {
		verr.Add("location", "must be at most 200 characters")
	}
	if in.Date.IsZero() {
		verr.Add("date", "this field is required")
	} else if checkDate && in.Date.Before(s.now()) {
		verr.Add("date", "must not be in the past")
	}
	if in.DurationMinutes < s.limits.MinDuration {
		verr.Add("duration_minutes", fmt.Sprintf("must be at least %d minutes", s.limits.MinDuration))
	}
	if in.MaxCapacity < s.limits.MinCapacity {
		verr.Add("max_capacity", fmt.Sprintf("must be at least %d", s.limits.MinCapacity))
	}
	if !in.EventType.Valid() {
		verr.Add("event_type", "must be one of sports, wellness, academic, other")
	}
	return verr.OrNil()
}

// Create validates in and stores a new event owned by the caller. The
// organization comes from the caller's active role and is_official is set
// from the caller's standing, whatever the input says.
func (s *Service) Create(ctx context.Context, p *access.Snapshot, in Input) (*models.EventWithStats, error) {
	if !access.Can(p, access.EventCreate, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	in.normalize(s.limits.DefaultCapacity)
	if err := s.validate(in, true); err != nil {
		return nil, err
	}
	e := &models.Event{
		Title:           in.Title,
		Description:     in.Description,
		Date:            in.Date,
		DurationMinutes: in.DurationMinutes,
		Location:        in.Location,
		Requirements:    in.Requirements,
		EventType:       in.EventType,
		MaxCapacity:     in.MaxCapacity,
		CreatedBy:       p.UserID,
		IsOfficial:      access.IsStaffOrAbove(p),
	}
	if g, ok := access.ActiveOrganization(p); ok {
		orgID := g.OrganizationID
		e.OrganizationID = &orgID
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created",
		zap.String("event_id", e.ID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.Bool("is_official", e.IsOfficial))
	return &models.EventWithStats{Event: *e, Stats: models.NewEventStats(e.MaxCapacity, 0)}, nil
}

// Update applies pt to an event. Only the creator may edit. is_official
// changes only when the editor is staff or above, and the organization is
// only filled in when missing.
func (s *Service) Update(ctx context.Context, p *access.Snapshot, id uuid.UUID, pt Patch) (*models.EventWithStats, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Can(p, access.EventEdit, access.ForEvent(e)) {
		return nil, apperr.ErrPermission
	}
	in := pt.merge(e)
	in.normalize(e.MaxCapacity)
	if err := s.validate(in, pt.Date != nil); err != nil {
		return nil, err
	}
	e.Title, e.Description, e.Date = in.Title, in.Description, in.Date
	e.DurationMinutes, e.Location, e.Requirements = in.DurationMinutes, in.Location, in.Requirements
	e.EventType, e.MaxCapacity = in.EventType, in.MaxCapacity
	if access.IsStaffOrAbove(p) {
		e.IsOfficial = in.IsOfficial
	}
	if e.OrganizationID == nil {
		if g, ok := access.ActiveOrganization(p); ok {
			orgID := g.OrganizationID
			e.OrganizationID = &orgID
		}
	}
	if err := s.store.UpdateWithinCapacity(ctx, e); err != nil {
		if errors.Is(err, apperr.ErrCapacity) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.store.GetWithStats(ctx, id)
}

// Delete removes an event. The creator and staff may delete.
func (s *Service) Delete(ctx context.Context, p *access.Snapshot, id uuid.UUID) error {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.Can(p, access.EventDelete, access.ForEvent(e)) {
		return apperr.ErrPermission
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", id.String()), zap.String("user_id", p.UserID.String()))
	return nil
}

// Detail is an event as seen by one caller.
type Detail struct {
	models.EventWithStats
	Registered bool   `json:"is_registered"`
	CanEdit    bool   `json:"can_edit"`
	CanDelete  bool   `json:"can_delete"`
	ImageURL   string `json:"image_url,omitempty"`
}

// Get returns an event visible to the caller with live stats.
func (s *Service) Get(ctx context.Context, p *access.Snapshot, id uuid.UUID) (*Detail, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	ev, err := s.store.GetWithStats(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.CreatedBy != p.UserID && !access.Visibility(p).Allows(ev.OrganizationID) {
		return nil, apperr.ErrNotFound
	}
	d := &Detail{
		EventWithStats: *ev,
		CanEdit:        access.Can(p, access.EventEdit, access.ForEvent(&ev.Event)),
		CanDelete:      access.Can(p, access.EventDelete, access.ForEvent(&ev.Event)),
	}
	if s.attendance != nil {
		if d.Registered, err = s.attendance.IsRegistered(ctx, p.UserID, id); err != nil {
			return nil, fmt.Errorf("check registration: %w", err)
		}
	}
	if s.images != nil && ev.ImageKey != "" {
		if url, err := s.images.PresignImageDownload(ctx, ev.ImageKey); err == nil {
			d.ImageURL = url
		} else {
			s.logger.Warn("presign event image", zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	return d, nil
}

// Dashboard lists the events visible to the caller.
func (s *Service) Dashboard(ctx context.Context, p *access.Snapshot, f ListFilter) ([]models.EventWithStats, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperr.NewValidation("type", "unknown event type")
	}
	return s.store.List(ctx, access.Visibility(p), f)
}

// Upcoming lists events that have not started yet, limited to the caller's
// visibility scope like the dashboard.
func (s *Service) Upcoming(ctx context.Context, p *access.Snapshot) ([]models.EventWithStats, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	return s.store.Upcoming(ctx, access.Visibility(p), s.now())
}

// MyEvents is the caller's own events and registrations.
type MyEvents struct {
	Created    []models.EventWithStats `json:"created"`
	Registered []models.EventWithStats `json:"registered"`
}

// Mine returns events the caller created and events they registered for.
func (s *Service) Mine(ctx context.Context, p *access.Snapshot) (*MyEvents, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	created, err := s.store.CreatedBy(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list created events: %w", err)
	}
	registered, err := s.store.RegisteredBy(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list registered events: %w", err)
	}
	return &MyEvents{Created: created, Registered: registered}, nil
}

// RegistrationList is the attendee list of one event.
type RegistrationList struct {
	Event     models.EventWithStats `json:"event"`
	Attendees []models.Attendee     `json:"attendees"`
}

// Registrations returns the attendees of an event. Creator only.
func (s *Service) Registrations(ctx context.Context, p *access.Snapshot, id uuid.UUID) (*RegistrationList, error) {
	ev, err := s.store.GetWithStats(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Can(p, access.EventViewRegistrations, access.ForEvent(&ev.Event)) {
		return nil, apperr.ErrPermission
	}
	attendees, err := s.attendance.Attendees(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	if attendees == nil {
		attendees = []models.Attendee{}
	}
	return &RegistrationList{Event: *ev, Attendees: attendees}, nil
}

// ImageUpload is a presigned upload target for an event image.
type ImageUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ImageUploadURL presigns an image upload and records its key on the event. Creator only.
func (s *Service) ImageUploadURL(ctx context.Context, p *access.Snapshot, id uuid.UUID, contentType string) (*ImageUpload, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Can(p, access.EventEdit, access.ForEvent(e)) {
		return nil, apperr.ErrPermission
	}
	key, err := storage.EventImageKey(id, contentType)
	if err != nil {
		return nil, apperr.NewValidation("content_type", err.Error())
	}
	url, err := s.images.PresignImageUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	if err := s.store.SetImageKey(ctx, id, key); err != nil {
		return nil, err
	}
	return &ImageUpload{URL: url, Key: key, ExpiresAt: s.now().Add(s.images.PresignExpire())}, nil
}

// PurgeExpired deletes events dated before now. With an archiver set, each
// event's attendees are archived first and events whose archive fails are
// kept for the next run.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		n   int64
		err error
	)
	if s.archiver == nil {
		n, err = s.store.DeleteExpired(ctx, now)
	} else {
		n, err = s.purgeArchived(ctx, now)
	}
	if err != nil {
		return 0, fmt.Errorf("purge expired events: %w", err)
	}
	metrics.EventsPurgedTotal.Add(float64(n))
	s.logger.Info("expired events purged", zap.Int64("count", n), zap.Time("before", now))
	return n, nil
}

func (s *Service) purgeArchived(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.store.Expired(ctx, now)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(expired))
	for i := range expired {
		e := &expired[i]
		if err := s.archiver.ArchiveAttendees(ctx, e); err != nil {
			s.logger.Error("archive attendees", zap.String("event_id", e.ID.String()), zap.Error(err))
			continue
		}
		ids = append(ids, e.ID)
	}
	return s.store.DeleteIDs(ctx, ids)
}

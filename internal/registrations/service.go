package registrations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/models"
)

// Registration statuses returned to callers.
const (
	StatusRegistered        = "registered"
	StatusAlreadyRegistered = "already_registered"
	StatusUnregistered      = "unregistered"
	StatusNotRegistered     = "not_registered"
)

// Store is the registration persistence the service needs.
type Store interface {
	Register(ctx context.Context, userID, eventID uuid.UUID) (Outcome, error)
	Unregister(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	IsRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	Stats(ctx context.Context, eventID uuid.UUID) (models.EventStats, error)
	Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// StatsPublisher fans out capacity changes to live viewers.
type StatsPublisher interface {
	PublishStats(ctx context.Context, eventID uuid.UUID, stats models.EventStats)
}

// Notifier sends the registration confirmation. Delivery is best effort.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, e *models.Event, p *access.Snapshot)
}

// Service implements the registration ledger.
type Service struct {
	store     Store
	events    EventLookup
	publisher StatsPublisher
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a registration service. publisher and notifier may be nil.
func NewService(store Store, events EventLookup, publisher StatsPublisher, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, publisher: publisher, notifier: notifier, logger: logger, now: time.Now}
}

// Result is the outcome of Register or Unregister.
type Result struct {
	Status string            `json:"status"`
	Stats  models.EventStats `json:"stats"`
}

// Register gives the caller a seat. Past events are refused before capacity
// is considered; registering twice is reported, not an error.
func (s *Service) Register(ctx context.Context, p *access.Snapshot, eventID uuid.UUID) (*Result, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.IsExpired(s.now()) {
		metrics.RegistrationsTotal.WithLabelValues("expired").Inc()
		return nil, apperr.ErrEventExpired
	}

	out, err := s.store.Register(ctx, p.UserID, eventID)
	if err != nil {
		if errors.Is(err, apperr.ErrCapacity) {
			metrics.RegistrationsTotal.WithLabelValues("full").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	if !out.Created {
		metrics.RegistrationsTotal.WithLabelValues(StatusAlreadyRegistered).Inc()
		return &Result{Status: StatusAlreadyRegistered, Stats: out.Stats}, nil
	}

	metrics.RegistrationsTotal.WithLabelValues(StatusRegistered).Inc()
	s.logger.Info("user registered for event",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.Int("registrations", out.Stats.CurrentRegistrations))
	if s.publisher != nil {
		s.publisher.PublishStats(ctx, eventID, out.Stats)
	}
	if s.notifier != nil {
		s.notifier.RegistrationConfirmed(ctx, e, p)
	}
	return &Result{Status: StatusRegistered, Stats: out.Stats}, nil
}

// Unregister releases the caller's seat. Having no seat is reported, not an error.
func (s *Service) Unregister(ctx context.Context, p *access.Snapshot, eventID uuid.UUID) (*Result, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	removed, err := s.store.Unregister(ctx, p.UserID, eventID)
	if err != nil {
		return nil, fmt.Errorf("unregister: %w", err)
	}
	stats, err := s.store.Stats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return &Result{Status: StatusNotRegistered, Stats: stats}, nil
	}
	metrics.UnregistrationsTotal.Inc()
	if s.publisher != nil {
		s.publisher.PublishStats(ctx, eventID, stats)
	}
	return &Result{Status: StatusUnregistered, Stats: stats}, nil
}

// IsRegistered reports whether userID holds a seat at eventID.
func (s *Service) IsRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	return s.store.IsRegistered(ctx, userID, eventID)
}

// ExportAttendees returns an event's attendees for export. The creator and
// staff may export.
func (s *Service) ExportAttendees(ctx context.Context, p *access.Snapshot, eventID uuid.UUID) (*models.Event, []models.Attendee, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if !access.Can(p, access.EventExport, access.ForEvent(e)) {
		return nil, nil, apperr.ErrPermission
	}
	attendees, err := s.store.Attendees(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("list attendees: %w", err)
	}
	return e, attendees, nil
}

// WriteCSV writes a Name,Email header followed by one row per attendee.
func WriteCSV(w io.Writer, attendees []models.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Email"}); err != nil {
		return err
	}
	for _, a := range attendees {
		if err := cw.Write([]string{a.Name, a.Email}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

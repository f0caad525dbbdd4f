package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service exposes delivery history.
type Service struct {
	logs   LogStore
	events EventLookup
}

// NewService creates the email history service.
func NewService(logs LogStore, events EventLookup) *Service {
	return &Service{logs: logs, events: events}
}

// EventLog returns the emails sent about an event. Creator or super admin.
func (s *Service) EventLog(ctx context.Context, p *access.Snapshot, eventID uuid.UUID) ([]*models.EmailLog, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.CreatedBy != p.UserID && !access.IsSuperAdmin(p) {
		return nil, apperr.ErrPermission
	}
	return s.logs.ListByEvent(ctx, eventID)
}

// Package contact collects help requests from people who cannot sign in and
// lets super admins work through them.
package contact

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/validation"
)

// DefaultSubject is used when the sender leaves the subject empty.
const DefaultSubject = "Login/Account Help Request"

// Store is the persistence the contact service needs.
type Store interface {
	Create(ctx context.Context, m *models.ContactMessage) error
	List(ctx context.Context, status models.ContactStatus) ([]models.ContactMessage, error)
	Counts(ctx context.Context) (models.ContactCounts, error)
	Update(ctx context.Context, id uuid.UUID, status models.ContactStatus, notes *string) (*models.ContactMessage, error)
}

// Notifier alerts the administrators. Delivery is best effort.
type Notifier interface {
	ContactReceived(ctx context.Context, m *models.ContactMessage, adminAddress string)
}

// Service implements the contact inbox.
type Service struct {
	store        Store
	notifier     Notifier
	adminAddress string
	logger       *zap.Logger
}

// NewService creates a contact service. An empty adminAddress disables the alert email.
func NewService(store Store, notifier Notifier, adminAddress string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, adminAddress: adminAddress, logger: logger}
}

// SubmitInput is a help request.
type SubmitInput struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required"`
}

// Submit stores a help request. No sign-in is needed.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.ContactMessage, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Message) > 5000 {
		return nil, apperr.NewValidation("message", "must be at most 5000 characters")
	}
	if in.Subject == "" {
		in.Subject = DefaultSubject
	}
	m := &models.ContactMessage{Email: in.Email, Subject: in.Subject, Message: in.Message}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store contact message: %w", err)
	}
	s.logger.Info("contact message received", zap.String("contact_id", m.ID.String()))
	if s.notifier != nil && s.adminAddress != "" {
		s.notifier.ContactReceived(ctx, m, s.adminAddress)
	}
	return m, nil
}

// Inbox is the super admin view of contact messages.
type Inbox struct {
	Messages []models.ContactMessage `json:"messages"`
	Counts   models.ContactCounts    `json:"counts"`
}

// List returns the inbox, optionally filtered by status. Super admins only.
func (s *Service) List(ctx context.Context, p *access.Snapshot, status models.ContactStatus) (*Inbox, error) {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	if status != "" && !status.Valid() {
		return nil, apperr.NewValidation("status", "unknown status")
	}
	msgs, err := s.store.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count contact messages: %w", err)
	}
	return &Inbox{Messages: msgs, Counts: counts}, nil
}

// UpdateInput moves a message along. Nil AdminNotes keeps the current notes.
type UpdateInput struct {
	Status     models.ContactStatus `json:"status"`
	AdminNotes *string              `json:"admin_notes"`
}

// Update changes a message's status and notes. Super admins only.
func (s *Service) Update(ctx context.Context, p *access.Snapshot, id uuid.UUID, in UpdateInput) (*models.ContactMessage, error) {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	if !in.Status.Valid() {
		return nil, apperr.NewValidation("status", "must be one of pending, in_progress, resolved, closed")
	}
	if in.AdminNotes != nil {
		notes := strings.TrimSpace(*in.AdminNotes)
		in.AdminNotes = &notes
	}
	m, err := s.store.Update(ctx, id, in.Status, in.AdminNotes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("contact message updated",
		zap.String("contact_id", id.String()),
		zap.String("status", string(in.Status)),
		zap.String("user_id", p.UserID.String()))
	return m, nil
}

package comments

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
)

// Store is the comment persistence the service needs.
type Store interface {
	Create(ctx context.Context, c *models.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service implements event comments.
type Service struct {
	store  Store
	events EventLookup
	logger *zap.Logger
}

// NewService creates a comment service.
func NewService(store Store, events EventLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, logger: logger}
}

// CreateInput is a new comment.
type CreateInput struct {
	Content  string     `json:"content"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// Create posts a comment on eventID. A reply's parent must be on the same event.
func (s *Service) Create(ctx context.Context, p *access.Snapshot, eventID uuid.UUID, in CreateInput) (*models.Comment, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	content := strings.TrimSpace(in.Content)
	switch n := utf8.RuneCountInString(content); {
	case n == 0:
		return nil, apperr.NewValidation("content", "this field is required")
	case n > models.MaxCommentLength:
		return nil, apperr.NewValidation("content", fmt.Sprintf("must be at most %d characters", models.MaxCommentLength))
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.store.GetByID(ctx, *in.ParentID)
		if err != nil || parent.EventID != eventID {
			return nil, apperr.NewValidation("parent_id", "parent comment not found on this event")
		}
	}
	c := &models.Comment{EventID: eventID, AuthorID: p.UserID, AuthorUsername: p.Username, Content: content, ParentID: in.ParentID}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// List returns the comments of an event, oldest first.
func (s *Service) List(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListByEvent(ctx, eventID)
}

// Delete removes a comment. Its author, the event creator and staff may delete.
func (s *Service) Delete(ctx context.Context, p *access.Snapshot, id uuid.UUID) error {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e, err := s.events.GetByID(ctx, c.EventID)
	if err != nil {
		return err
	}
	if !access.Can(p, access.CommentDelete, access.ForComment(c, e.CreatedBy)) {
		return apperr.ErrPermission
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("comment deleted", zap.String("comment_id", id.String()), zap.String("user_id", p.UserID.String()))
	return nil
}

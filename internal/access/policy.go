package access

import (
	"github.com/google/uuid"

	"github.com/spherelink/backend/internal/models"
)

// Action is something a caller attempts.
type Action string

const (
	EventCreate            Action = "event.create"
	EventEdit              Action = "event.edit"
	EventViewRegistrations Action = "event.view_registrations"
	EventDelete            Action = "event.delete"
	EventExport            Action = "event.export"
	CommentDelete          Action = "comment.delete"
	OrganizationManage     Action = "organization.manage"
)

// Resource describes ownership of the object an action targets.
// EventCreator is the creator of the event involved; AuthorID is set for comments.
type Resource struct {
	EventCreator uuid.UUID
	AuthorID     uuid.UUID
}

// Can reports whether the caller may perform action on res.
func Can(s *Snapshot, action Action, res Resource) bool {
	if !authenticated(s) {
		return false
	}
	isCreator := res.EventCreator != uuid.Nil && res.EventCreator == s.UserID
	switch action {
	case EventCreate:
		return true
	case EventEdit, EventViewRegistrations:
		return isCreator
	case EventDelete, EventExport:
		return isCreator || IsStaffOrAbove(s)
	case CommentDelete:
		isAuthor := res.AuthorID != uuid.Nil && res.AuthorID == s.UserID
		return isAuthor || isCreator || IsStaffOrAbove(s)
	case OrganizationManage:
		return IsSuperAdmin(s)
	}
	return false
}

// ForEvent builds the resource for an event action.
func ForEvent(e *models.Event) Resource {
	return Resource{EventCreator: e.CreatedBy}
}

// ForComment builds the resource for a comment on an event created by eventCreator.
func ForComment(c *models.Comment, eventCreator uuid.UUID) Resource {
	return Resource{EventCreator: eventCreator, AuthorID: c.AuthorID}
}

// Summary is the caller's authorization state as returned by GET /me.
type Summary struct {
	UserID           uuid.UUID  `json:"user_id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	IsSuperuser      bool       `json:"is_superuser"`
	EffectiveRole    Level      `json:"effective_role"`
	IsStaffOrAbove   bool       `json:"is_staff_or_above"`
	IsSuperAdmin     bool       `json:"is_super_admin"`
	OrganizationID   *uuid.UUID `json:"organization_id,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	OrganizationRole string     `json:"organization_role,omitempty"`
}

// Summarize computes the Summary for s.
func Summarize(s *Snapshot) Summary {
	if s == nil {
		return Summary{EffectiveRole: Anonymous}
	}
	sum := Summary{
		UserID:         s.UserID,
		Username:       s.Username,
		Email:          s.Email,
		IsSuperuser:    s.IsSuperuser,
		EffectiveRole:  EffectiveRole(s),
		IsStaffOrAbove: IsStaffOrAbove(s),
		IsSuperAdmin:   IsSuperAdmin(s),
	}
	if g, ok := ActiveOrganization(s); ok {
		id := g.OrganizationID
		sum.OrganizationID = &id
		sum.OrganizationName = g.OrganizationName
		sum.OrganizationRole = string(g.Role)
	}
	return sum
}

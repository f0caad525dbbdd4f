package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation offers a role in an organization to an email address.
type Invitation struct {
	ID             uuid.UUID        `json:"id"`
	Email          string           `json:"email"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	Role           Role             `json:"role"`
	Status         InvitationStatus `json:"status"`
	Token          string           `json:"token,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	InvitedBy      uuid.UUID        `json:"invited_by"`
	CreatedAt      time.Time        `json:"created_at"`
	RespondedAt    *time.Time       `json:"responded_at,omitempty"`
}

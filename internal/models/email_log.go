package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType identifies which notification an email carries.
const (
	EmailTypeRegistrationConfirmation = "registration_confirmation"
	EmailTypeInvitation               = "invitation"
	EmailTypeMemberWelcome            = "member_welcome"
	EmailTypeContactAlert             = "contact_alert"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records a notification email and its delivery outcome.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactStatus tracks how far a contact message has been handled.
type ContactStatus string

const (
	ContactPending    ContactStatus = "pending"
	ContactInProgress ContactStatus = "in_progress"
	ContactResolved   ContactStatus = "resolved"
	ContactClosed     ContactStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactPending, ContactInProgress, ContactResolved, ContactClosed:
		return true
	}
	return false
}

// ContactMessage is a help request sent to the administrators, usually by
// someone who cannot log in.
type ContactMessage struct {
	ID         uuid.UUID     `json:"id"`
	Email      string        `json:"email"`
	Subject    string        `json:"subject"`
	Message    string        `json:"message"`
	Status     ContactStatus `json:"status"`
	AdminNotes string        `json:"admin_notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ContactCounts summarizes the inbox by status.
type ContactCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration records that a user holds a seat at an event.
type Registration struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	EventID      uuid.UUID `json:"event_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Attendee is a registration joined with its user for listings and export.
type Attendee struct {
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an event.
type EventType string

const (
	EventSports   EventType = "sports"
	EventWellness EventType = "wellness"
	EventAcademic EventType = "academic"
	EventOther    EventType = "other"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSports, EventWellness, EventAcademic, EventOther:
		return true
	}
	return false
}

// Event is a scheduled happening with a hard attendee capacity.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Date            time.Time  `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	Location        string     `json:"location"`
	Requirements    string     `json:"requirements"`
	ImageKey        string     `json:"image_key,omitempty"`
	EventType       EventType  `json:"event_type"`
	IsOfficial      bool       `json:"is_official"`
	MaxCapacity     int        `json:"max_capacity"`
	OrganizationID  *uuid.UUID `json:"organization_id,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsExpired reports whether the event date is before now.
func (e *Event) IsExpired(now time.Time) bool {
	return e.Date.Before(now)
}

// EventStats are derived from the live registration count and never stored.
type EventStats struct {
	CurrentRegistrations   int     `json:"current_registrations"`
	MaxCapacity            int     `json:"max_capacity"`
	AvailableSpots         int     `json:"available_spots"`
	IsFull                 bool    `json:"is_full"`
	RegistrationPercentage float64 `json:"registration_percentage"`
}

// NewEventStats computes stats for a capacity and a registration count.
func NewEventStats(capacity, count int) EventStats {
	s := EventStats{
		CurrentRegistrations: count,
		MaxCapacity:          capacity,
		AvailableSpots:       capacity - count,
		IsFull:               count >= capacity,
	}
	if s.AvailableSpots < 0 {
		s.AvailableSpots = 0
	}
	if capacity > 0 {
		s.RegistrationPercentage = float64(count) / float64(capacity) * 100
	}
	return s
}

// EventWithStats is an event row together with its live registration count.
type EventWithStats struct {
	Event
	Stats EventStats `json:"stats"`
}

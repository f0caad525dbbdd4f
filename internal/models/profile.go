package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public part of a user's account. One row per user,
// created on first read.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Bio       string    `json:"bio"`
	PhotoKey  string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

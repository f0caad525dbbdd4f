package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxCommentLength is the maximum comment length in characters.
const MaxCommentLength = 1000

// Comment is a message on an event, optionally replying to another comment.
type Comment struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	AuthorID       uuid.UUID  `json:"author_id"`
	AuthorUsername string     `json:"author_username,omitempty"`
	Content        string     `json:"content"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

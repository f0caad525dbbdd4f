package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row and fills ID, Status and CreatedAt.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (event_id, organization_id, email_type, recipient_email, subject)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at`
	return r.pool.QueryRow(ctx, q, l.EventID, l.OrganizationID, l.EmailType, l.RecipientEmail, l.Subject).
		Scan(&l.ID, &l.Status, &l.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.setStatus(ctx, id, models.EmailLogStatusSent, "", &at)
}

// MarkFailed records the last delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, models.EmailLogStatusFailed, reason, nil)
}

func (r *Repository) setStatus(ctx context.Context, id uuid.UUID, status, reason string, sentAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, error_message = $3, sent_at = $4 WHERE id = $1`,
		id, status, reason, sentAt)
	if err != nil {
		return fmt.Errorf("update email log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListByEvent returns email logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, event_id, organization_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.EventID, &el.OrganizationID, &el.EmailType, &el.RecipientEmail, &el.Subject,
			&el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

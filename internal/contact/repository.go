package contact

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

const messageColumns = `id, email, subject, message, status, admin_notes, created_at, updated_at`

// Repository handles contact message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a contact messages repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*models.ContactMessage, error) {
	var m models.ContactMessage
	if err := row.Scan(&m.ID, &m.Email, &m.Subject, &m.Message, &m.Status, &m.AdminNotes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create inserts a pending message.
func (r *Repository) Create(ctx context.Context, m *models.ContactMessage) error {
	const q = `INSERT INTO contact_messages (email, subject, message)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns
	got, err := scanMessage(r.pool.QueryRow(ctx, q, m.Email, m.Subject, m.Message))
	if err != nil {
		return err
	}
	*m = *got
	return nil
}

// List returns messages newest first, optionally only those in status.
func (r *Repository) List(ctx context.Context, status models.ContactStatus) ([]models.ContactMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM contact_messages`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ContactMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Counts tallies every message by status.
func (r *Repository) Counts(ctx context.Context) (models.ContactCounts, error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'closed')
		FROM contact_messages`
	var c models.ContactCounts
	err := r.pool.QueryRow(ctx, q).Scan(&c.Total, &c.Pending, &c.InProgress, &c.Resolved, &c.Closed)
	return c, err
}

// Update sets the status of a message and, when notes is non-nil, its admin notes.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, status models.ContactStatus, notes *string) (*models.ContactMessage, error) {
	const q = `UPDATE contact_messages
		SET status = $2, admin_notes = COALESCE($3, admin_notes), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, q, id, string(status), notes))
}

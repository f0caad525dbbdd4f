package registrations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Outcome is the result of a register call.
type Outcome struct {
	Created bool
	Stats   models.EventStats
}

// Register reserves a seat for userID. The event row is locked for the whole
// transaction, so concurrent callers are serialized per event and the count
// they see is exact. A user who already holds a seat gets Created false even
// when the event is full; anyone else fails with ErrCapacity once count
// reaches max_capacity.
func (r *Repository) Register(ctx context.Context, userID, eventID uuid.UUID) (Outcome, error) {
	var out Outcome
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var capacity int
		if err := tx.QueryRow(ctx, `SELECT max_capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity); err != nil {
			if database.IsNoRows(err) {
				return apperr.ErrNotFound
			}
			return err
		}
		var count int
		var mine bool
		if err := tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE) FROM registrations WHERE event_id = $1`,
			eventID, userID).Scan(&count, &mine); err != nil {
			return err
		}
		if mine {
			out.Stats = models.NewEventStats(capacity, count)
			return nil
		}
		if count >= capacity {
			out.Stats = models.NewEventStats(capacity, count)
			return apperr.ErrCapacity
		}
		tag, err := tx.Exec(ctx, `INSERT INTO registrations (user_id, event_id) VALUES ($1, $2) ON CONFLICT (user_id, event_id) DO NOTHING`,
			userID, eventID)
		if err != nil {
			return err
		}
		out.Created = tag.RowsAffected() == 1
		if out.Created {
			count++
		}
		out.Stats = models.NewEventStats(capacity, count)
		return nil
	})
	return out, err
}

// Unregister deletes the user's seat and reports whether one existed.
func (r *Repository) Unregister(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IsRegistered reports whether userID holds a seat at eventID.
func (r *Repository) IsRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2)`, userID, eventID).Scan(&ok)
	return ok, err
}

// Stats returns live stats for an event.
func (r *Repository) Stats(ctx context.Context, eventID uuid.UUID) (models.EventStats, error) {
	var capacity, count int
	err := r.pool.QueryRow(ctx, `SELECT e.max_capacity, (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id) FROM events e WHERE e.id = $1`,
		eventID).Scan(&capacity, &count)
	if database.IsNoRows(err) {
		return models.EventStats{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.EventStats{}, err
	}
	return models.NewEventStats(capacity, count), nil
}

// Attendees returns the registrations of an event with user details, earliest first.
func (r *Repository) Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	const q = `SELECT u.id, u.username, COALESCE(NULLIF(u.full_name, ''), u.username), u.email, reg.registered_at
		FROM registrations reg
		JOIN users u ON u.id = reg.user_id
		WHERE reg.event_id = $1
		ORDER BY reg.registered_at ASC, reg.id`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Attendee
	for rows.Next() {
		var a models.Attendee
		if err := rows.Scan(&a.UserID, &a.Username, &a.Name, &a.Email, &a.RegisteredAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

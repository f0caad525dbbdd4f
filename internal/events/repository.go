package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

const eventColumns = `e.id, e.title, e.description, e.date, e.duration_minutes, e.location, e.requirements, e.image_key,
	e.event_type, e.is_official, e.max_capacity, e.organization_id, e.created_by, e.created_at, e.updated_at`

const registrationCount = `(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id)`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func eventDest(e *models.Event) []any {
	return []any{&e.ID, &e.Title, &e.Description, &e.Date, &e.DurationMinutes, &e.Location, &e.Requirements, &e.ImageKey,
		&e.EventType, &e.IsOfficial, &e.MaxCapacity, &e.OrganizationID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt}
}

func scanWithStats(row pgx.Row) (*models.EventWithStats, error) {
	var ev models.EventWithStats
	var count int
	if err := row.Scan(append(eventDest(&ev.Event), &count)...); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	ev.Stats = models.NewEventStats(ev.MaxCapacity, count)
	return &ev, nil
}

func collectWithStats(rows pgx.Rows) ([]models.EventWithStats, error) {
	defer rows.Close()
	list := []models.EventWithStats{}
	for rows.Next() {
		ev, err := scanWithStats(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *ev)
	}
	return list, rows.Err()
}

// GetEvent loads one event through db.
func GetEvent(ctx context.Context, db database.DBTX, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	if err := db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id).Scan(eventDest(&e)...); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, date, duration_minutes, location, requirements, event_type, is_official, max_capacity, organization_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.DurationMinutes, e.Location, e.Requirements,
		string(e.EventType), e.IsOfficial, e.MaxCapacity, e.OrganizationID, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event without stats.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return GetEvent(ctx, r.pool, id)
}

// GetWithStats returns an event with its live registration stats.
func (r *Repository) GetWithStats(ctx context.Context, id uuid.UUID) (*models.EventWithStats, error) {
	return scanWithStats(r.pool.QueryRow(ctx, `SELECT `+eventColumns+`, `+registrationCount+` FROM events e WHERE e.id = $1`, id))
}

// UpdateWithinCapacity writes every editable field of e. The event row is
// locked first so a concurrent registration cannot slip in between the count
// and the write; a capacity below the current count fails with ErrCapacity and
// leaves the row untouched.
func (r *Repository) UpdateWithinCapacity(ctx context.Context, e *models.Event) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, e.ID).Scan(&id); err != nil {
			if database.IsNoRows(err) {
				return apperr.ErrNotFound
			}
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, e.ID).Scan(&count); err != nil {
			return err
		}
		if e.MaxCapacity < count {
			return fmt.Errorf("%w: capacity %d is below %d current registrations", apperr.ErrCapacity, e.MaxCapacity, count)
		}
		const q = `UPDATE events SET title = $1, description = $2, date = $3, duration_minutes = $4, location = $5,
			requirements = $6, event_type = $7, max_capacity = $8, organization_id = $9, is_official = $10, updated_at = NOW()
			WHERE id = $11 RETURNING updated_at`
		return tx.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.DurationMinutes, e.Location, e.Requirements,
			string(e.EventType), e.MaxCapacity, e.OrganizationID, e.IsOfficial, e.ID).Scan(&e.UpdatedAt)
	})
}

// Delete removes an event. Registrations and comments cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListFilter narrows the dashboard listing.
type ListFilter struct {
	Search string
	Type   models.EventType
}

// scopeClause renders scope as a SQL condition, appending its argument to args.
func scopeClause(scope access.EventScope, args []any) (string, []any) {
	switch {
	case scope.All:
		return "TRUE", args
	case scope.OrganizationID == nil:
		return "e.organization_id IS NULL", args
	default:
		args = append(args, *scope.OrganizationID)
		return fmt.Sprintf("e.organization_id = $%d", len(args)), args
	}
}

// List returns the events in scope matching f, newest date first.
func (r *Repository) List(ctx context.Context, scope access.EventScope, f ListFilter) ([]models.EventWithStats, error) {
	var args []any
	cond, args := scopeClause(scope, args)
	where := []string{cond}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, s)
		n := len(args)
		where = append(where, fmt.Sprintf("(e.title ILIKE '%%' || $%d || '%%' OR e.description ILIKE '%%' || $%d || '%%' OR e.location ILIKE '%%' || $%d || '%%')", n, n, n))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("e.event_type = $%d", len(args)))
	}
	q := `SELECT ` + eventColumns + `, ` + registrationCount + ` FROM events e WHERE ` + strings.Join(where, " AND ") + ` ORDER BY e.date DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectWithStats(rows)
}

// Upcoming returns the events in scope dated at or after now, soonest first.
func (r *Repository) Upcoming(ctx context.Context, scope access.EventScope, now time.Time) ([]models.EventWithStats, error) {
	args := []any{now}
	cond, args := scopeClause(scope, args)
	q := `SELECT ` + eventColumns + `, ` + registrationCount + ` FROM events e WHERE e.date >= $1 AND ` + cond + ` ORDER BY e.date ASC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectWithStats(rows)
}

// CreatedBy returns events created by userID, newest first.
func (r *Repository) CreatedBy(ctx context.Context, userID uuid.UUID) ([]models.EventWithStats, error) {
	q := `SELECT ` + eventColumns + `, ` + registrationCount + ` FROM events e WHERE e.created_by = $1 ORDER BY e.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectWithStats(rows)
}

// RegisteredBy returns events userID is registered for, latest date first.
func (r *Repository) RegisteredBy(ctx context.Context, userID uuid.UUID) ([]models.EventWithStats, error) {
	q := `SELECT ` + eventColumns + `, ` + registrationCount + ` FROM events e
		JOIN registrations reg ON reg.event_id = e.id
		WHERE reg.user_id = $1 ORDER BY e.date DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectWithStats(rows)
}

// SetImageKey stores the S3 object key of the event image.
func (r *Repository) SetImageKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET image_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Expired returns events dated before now.
func (r *Repository) Expired(ctx context.Context, now time.Time) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.date < $1 ORDER BY e.date`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(eventDest(&e)...); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// DeleteExpired removes every event dated before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteIDs removes the given events.
func (r *Repository) DeleteIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

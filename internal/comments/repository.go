package comments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

// Repository handles comment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a comments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a comment.
func (r *Repository) Create(ctx context.Context, c *models.Comment) error {
	const q = `INSERT INTO comments (event_id, author_id, content, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, c.EventID, c.AuthorID, c.Content, c.ParentID).Scan(&c.ID, &c.CreatedAt)
}

// GetByID returns a comment by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const q = `SELECT c.id, c.event_id, c.author_id, u.username, c.content, c.parent_id, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id WHERE c.id = $1`
	var c models.Comment
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.EventID, &c.AuthorID, &c.AuthorUsername, &c.Content, &c.ParentID, &c.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListByEvent returns an event's comments, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error) {
	const q = `SELECT c.id, c.event_id, c.author_id, u.username, c.content, c.parent_id, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.event_id = $1 ORDER BY c.created_at ASC, c.id`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.EventID, &c.AuthorID, &c.AuthorUsername, &c.Content, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Delete removes a comment and its replies.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

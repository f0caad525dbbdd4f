package profiles

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

// Repository handles profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the profile of userID, creating an empty one on first access.
// An unknown user is ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	const q = `WITH ins AS (
			INSERT INTO profiles (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING user_id, bio, photo_key, updated_at
		)
		SELECT user_id, bio, photo_key, updated_at FROM ins
		UNION ALL
		SELECT user_id, bio, photo_key, updated_at FROM profiles WHERE user_id = $1
		LIMIT 1`
	var p models.Profile
	err := r.pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &p.Bio, &p.PhotoKey, &p.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) || database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetBio stores bio for userID.
func (r *Repository) SetBio(ctx context.Context, userID uuid.UUID, bio string) (*models.Profile, error) {
	return r.upsert(ctx, `INSERT INTO profiles (user_id, bio) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET bio = EXCLUDED.bio, updated_at = NOW()
		RETURNING user_id, bio, photo_key, updated_at`, userID, bio)
}

// SetPhotoKey records the object key of userID's photo.
func (r *Repository) SetPhotoKey(ctx context.Context, userID uuid.UUID, key string) (*models.Profile, error) {
	return r.upsert(ctx, `INSERT INTO profiles (user_id, photo_key) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET photo_key = EXCLUDED.photo_key, updated_at = NOW()
		RETURNING user_id, bio, photo_key, updated_at`, userID, key)
}

func (r *Repository) upsert(ctx context.Context, q string, userID uuid.UUID, value string) (*models.Profile, error) {
	var p models.Profile
	if err := r.pool.QueryRow(ctx, q, userID, value).Scan(&p.UserID, &p.Bio, &p.PhotoKey, &p.UpdatedAt); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

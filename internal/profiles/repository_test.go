package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/pkg/database/dbtest"
)

func TestRepositoryProfileLifecycle(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	u, err := auth.NewRepository(pool).Create(ctx, auth.CreateUserParams{Username: "ana", Email: "ana@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	p, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Empty(t, p.Bio)

	again, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, p.UpdatedAt, again.UpdatedAt)

	p, err = repo.SetBio(ctx, u.ID, "Climber")
	require.NoError(t, err)
	assert.Equal(t, "Climber", p.Bio)

	p, err = repo.SetPhotoKey(ctx, u.ID, "profile_photos/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Climber", p.Bio)
	assert.Equal(t, "profile_photos/a.png", p.PhotoKey)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = repo.SetBio(ctx, uuid.New(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

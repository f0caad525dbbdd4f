package contact

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database/dbtest"
)

func TestRepositoryContactLifecycle(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	m := &models.ContactMessage{Email: "a@example.com", Subject: DefaultSubject, Message: "Locked out"}
	require.NoError(t, repo.Create(ctx, m))
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, models.ContactPending, m.Status)
	require.NoError(t, repo.Create(ctx, &models.ContactMessage{Email: "b@example.com", Subject: "Other", Message: "Hello"}))

	notes := "emailed"
	got, err := repo.Update(ctx, m.ID, models.ContactInProgress, &notes)
	require.NoError(t, err)
	assert.Equal(t, "emailed", got.AdminNotes)
	got, err = repo.Update(ctx, m.ID, models.ContactResolved, nil)
	require.NoError(t, err)
	assert.Equal(t, "emailed", got.AdminNotes)
	assert.Equal(t, models.ContactResolved, got.Status)

	resolved, err := repo.List(ctx, models.ContactResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, m.ID, resolved[0].ID)
	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ContactCounts{Total: 2, Pending: 1, Resolved: 1}, counts)

	_, err = repo.Update(ctx, uuid.New(), models.ContactClosed, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

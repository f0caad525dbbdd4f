package organizations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database/dbtest"
)

func TestRepositoryRolesAndSnapshot(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	users := auth.NewRepository(pool)

	org := &models.Organization{Name: "Hiking", IsActive: true}
	require.NoError(t, repo.Create(ctx, org))
	dup := &models.Organization{Name: "Hiking", IsActive: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), apperr.ErrValidation)

	u, err := users.Create(ctx, auth.CreateUserParams{Username: "gina", Email: "gina@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	first, err := repo.UpsertRole(ctx, RoleParams{UserID: u.ID, OrganizationID: org.ID, Role: models.RoleMember})
	require.NoError(t, err)
	_, err = repo.SetRoleActive(ctx, first.ID, false)
	require.NoError(t, err)
	second, err := repo.UpsertRole(ctx, RoleParams{UserID: u.ID, OrganizationID: org.ID, Role: models.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
	assert.Equal(t, models.RoleStaff, second.Role)

	snap, err := repo.LoadSnapshot(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, snap.Grants, 1)
	assert.Equal(t, "Hiking", snap.Grants[0].OrganizationName)
	assert.True(t, snap.Grants[0].OrganizationActive)

	members, err := repo.ListMembers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "gina", members[0].Username)

	stats, err := repo.DirectoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.Equal(t, 1, stats.UsersWithRoles)
	assert.Equal(t, 1, stats.RoleDistribution[models.RoleStaff])

	require.NoError(t, repo.DeleteRole(ctx, second.ID))
	assert.ErrorIs(t, repo.DeleteRole(ctx, second.ID), apperr.ErrNotFound)
	_, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
}

func TestRepositoryImportMemberIsPerRow(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	svc := NewService(repo, nil, nil)
	svc.tempPasswordHash = func() (string, error) { return "hashed", nil }

	org := &models.Organization{Name: "Climbing", IsActive: true}
	require.NoError(t, repo.Create(ctx, org))
	users := auth.NewRepository(pool)
	root, err := users.Create(ctx, auth.CreateUserParams{Username: "root", Email: "root@example.com", PasswordHash: "x", IsSuperuser: true})
	require.NoError(t, err)
	_, err = users.Create(ctx, auth.CreateUserParams{Username: "hank", Email: "hank@other.org", PasswordHash: "x"})
	require.NoError(t, err)

	report, err := svc.BulkImport(ctx, &access.Snapshot{UserID: root.ID, IsSuperuser: true}, org.ID, []string{"hank@example.com", "oops", "hank@example.com", "ivy@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.InvalidEmails)
	assert.Equal(t, 1, report.ExistingUsers)

	var username string
	require.NoError(t, pool.QueryRow(ctx, `SELECT username FROM users WHERE email = 'hank@example.com'`).Scan(&username))
	assert.Equal(t, "hank1", username)

	members, err := repo.ListMembers(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

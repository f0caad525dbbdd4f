// Package dbtest starts one shared PostgreSQL container per test binary for
// repository integration tests.
package dbtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/spherelink/backend/pkg/database"
)

var (
	once    sync.Once
	initErr error
	pool    *pgxpool.Pool
)

// Pool returns a migrated pool with every table emptied. The test is skipped
// under -short or when no container runtime is available.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("events"),
			postgres.WithUsername("events"),
			postgres.WithPassword("events"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			initErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			initErr = err
			return
		}
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			initErr = err
			return
		}
		if err := database.Migrate(ctx, p); err != nil {
			p.Close()
			initErr = err
			return
		}
		pool = p
	})
	require.NoError(t, initErr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := pool.Exec(ctx, `TRUNCATE contact_messages, profiles, email_logs, invitations, comments, registrations, events, role_assignments, organizations, users CASCADE`)
	require.NoError(t, err)
	return pool
}

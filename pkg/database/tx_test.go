package database

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	name, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", name)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))

	_, ok = UniqueViolation(pgx.ErrNoRows)
	assert.False(t, ok)
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(nil))
}

package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()

	token, err := svc.Generate(id, "alice", "alice@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("one", 1).Generate(uuid.New(), "a", "a@example.com")
	require.NoError(t, err)

	_, err = NewJWTService("two", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.Generate(uuid.New(), "a", "a@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsGarbage(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

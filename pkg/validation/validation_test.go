package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/apperr"
)

type signup struct {
	Username string `json:"username" validate:"required,max=10"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=member staff"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(signup{Username: "alice", Email: "alice@example.com", Password: "longenough"}))

	err := Struct(signup{Username: "averyveryverylongname", Email: "nope", Password: "short", Role: "boss"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be at most 10 characters", ve.Fields["username"])
	assert.Equal(t, "enter a valid email address", ve.Fields["email"])
	assert.Equal(t, "must be at least 8 characters", ve.Fields["password"])
	assert.Equal(t, "must be one of: member staff", ve.Fields["role"])
}

func TestEmail(t *testing.T) {
	assert.True(t, Email("bob@example.org"))
	assert.False(t, Email("bob@"))
	assert.False(t, Email("not-an-email"))
	assert.False(t, Email(""))
}

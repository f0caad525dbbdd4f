package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())

	v.Add("title", "too short")
	v.Add("title", "ignored")
	v.Add("date", "in the past")

	err := v.OrNil()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "too short", v.Fields["title"])
	assert.Equal(t, "validation failed: date: in the past; title: too short", err.Error())

	wrapped := fmt.Errorf("create event: %w", err)
	var ve *ValidationError
	require.True(t, errors.As(wrapped, &ve))
	assert.Len(t, ve.Fields, 2)
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("email", "invalid")
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrPermission)
}

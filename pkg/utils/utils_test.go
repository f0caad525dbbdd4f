package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

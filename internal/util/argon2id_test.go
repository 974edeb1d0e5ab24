package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	salt, err := NewSalt(16)
	require.NoError(t, err)
	require.Len(t, salt, 16)

	params := DefaultArgon2idParams()
	hash := HashPassword("correct horse battery staple", salt, params)
	require.Len(t, hash, int(params.KeyLen))

	assert.True(t, VerifyPassword("correct horse battery staple", salt, params, hash))
	assert.False(t, VerifyPassword("wrong password", salt, params, hash))

	otherSalt, err := NewSalt(16)
	require.NoError(t, err)
	assert.False(t, VerifyPassword("correct horse battery staple", otherSalt, params, hash),
		"hash must be bound to its salt")
}

func TestNewSaltIsRandom(t *testing.T) {
	a, err := NewSalt(16)
	require.NoError(t, err)
	b, err := NewSalt(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

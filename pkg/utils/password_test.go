package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("123")
	require.NoError(t, err)
	assert.NotEqual(t, "123", hash)
	assert.True(t, CheckPasswordHash("123", hash))
	assert.False(t, CheckPasswordHash("1234", hash))
	assert.False(t, CheckPasswordHash("123", "not-a-hash"))
}

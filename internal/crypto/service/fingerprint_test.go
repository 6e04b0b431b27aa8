package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

func TestFingerprinter(t *testing.T) {
	chain, err := cryptoDomain.NewKekChain("k2", []*cryptoDomain.Kek{
		{ID: "k1", Key: randomKey(t)},
		{ID: "k2", Key: randomKey(t)},
	})
	require.NoError(t, err)
	f := NewFingerprinter(chain)

	sum, err := f.Sum([]byte("bot1"), []byte("x_api_key"), []byte("sk-123"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sum, "k2:"))
	assert.NotContains(t, sum, "sk-123")

	again, err := f.Sum([]byte("bot1"), []byte("x_api_key"), []byte("sk-123"))
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	// Length prefixing keeps part boundaries significant.
	shifted, err := f.Sum([]byte("bot1x"), []byte("_api_key"), []byte("sk-123"))
	require.NoError(t, err)
	assert.NotEqual(t, sum, shifted)

	ok, err := f.Matches(sum, []byte("bot1"), []byte("x_api_key"), []byte("sk-123"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Matches(sum, []byte("bot1"), []byte("x_api_key"), []byte("sk-456"))
	require.NoError(t, err)
	assert.False(t, ok)

	old, err := f.SumWith("k1", []byte("payload"))
	require.NoError(t, err)
	ok, err = f.Matches(old, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.SumWith("missing", []byte("payload"))
	assert.ErrorIs(t, err, cryptoDomain.ErrKekNotFound)

	ok, err = f.Matches("garbage", []byte("payload"))
	require.NoError(t, err)
	assert.False(t, ok)
}

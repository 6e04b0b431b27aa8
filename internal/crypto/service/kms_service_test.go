package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("Success_LocalSecrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() { assert.NoError(t, keeper.Close()) }()

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok, "keeper should be *secrets.Keeper")
	})

	t.Run("Error_InvalidURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})
}

func TestLoadKekChain(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()
	k1 := randomKey(t)
	k2 := randomKey(t)

	t.Run("Success_PlaintextKeys", func(t *testing.T) {
		raw := "k1:" + base64.StdEncoding.EncodeToString(k1) + ",k2:" + base64.StdEncoding.EncodeToString(k2)

		chain, err := LoadKekChain(ctx, KekLoaderConfig{Raw: raw, ActiveID: "k2"}, kmsService)
		require.NoError(t, err)
		defer chain.Close()

		active, ok := chain.Active()
		require.True(t, ok)
		assert.Equal(t, "k2", active.ID)
		assert.Equal(t, k2, active.Key)
	})

	t.Run("Success_KMSEncryptedKeys", func(t *testing.T) {
		keyURI := generateLocalSecretsURI(t)
		keeper, err := kmsService.OpenKeeper(ctx, keyURI)
		require.NoError(t, err)
		defer func() { _ = keeper.Close() }()

		encrypted, err := EncryptKek(ctx, keeper, k1, time.Second)
		require.NoError(t, err)
		raw := "k1:" + base64.StdEncoding.EncodeToString(encrypted)

		chain, err := LoadKekChain(ctx, KekLoaderConfig{
			Raw:       raw,
			ActiveID:  "k1",
			KMSKeyURI: keyURI,
			Timeout:   time.Second,
		}, kmsService)
		require.NoError(t, err)
		defer chain.Close()

		kek, ok := chain.Get("k1")
		require.True(t, ok)
		assert.Equal(t, k1, kek.Key)
	})

	t.Run("Error_KMSDecryptFails", func(t *testing.T) {
		raw := "k1:" + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 64)))

		_, err := LoadKekChain(ctx, KekLoaderConfig{
			Raw:       raw,
			ActiveID:  "k1",
			KMSKeyURI: generateLocalSecretsURI(t),
		}, kmsService)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decrypt KEK k1")
	})

	t.Run("Error_ActiveMissing", func(t *testing.T) {
		raw := "k1:" + base64.StdEncoding.EncodeToString(k1)

		_, err := LoadKekChain(ctx, KekLoaderConfig{Raw: raw, ActiveID: "k9"}, kmsService)
		assert.ErrorIs(t, err, cryptoDomain.ErrActiveKekNotFound)
	})

	t.Run("Error_NotSet", func(t *testing.T) {
		_, err := LoadKekChain(ctx, KekLoaderConfig{ActiveID: "k1"}, kmsService)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeksNotSet)
	})
}

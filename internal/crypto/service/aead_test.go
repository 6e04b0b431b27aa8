package service

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()

	t.Run("Success_AESGCM", func(t *testing.T) {
		c, err := manager.CreateCipher(randomKey(t), cryptoDomain.AESGCM)
		require.NoError(t, err)
		assert.IsType(t, &AESGCMCipher{}, c)
	})

	t.Run("Success_ChaCha20", func(t *testing.T) {
		c, err := manager.CreateCipher(randomKey(t), cryptoDomain.ChaCha20)
		require.NoError(t, err)
		assert.IsType(t, &ChaCha20Poly1305Cipher{}, c)
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		_, err := manager.CreateCipher([]byte("short"), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("Error_UnsupportedAlgorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(randomKey(t), cryptoDomain.Algorithm("des"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}

func TestAEAD_RoundTripAndTamper(t *testing.T) {
	manager := NewAEADManager()
	large := bytes.Repeat([]byte("x"), 1<<20)

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			c, err := manager.CreateCipher(randomKey(t), alg)
			require.NoError(t, err)
			aad := []byte("owner:bot1")

			for _, plaintext := range [][]byte{{}, []byte("sk-123"), large} {
				ciphertext, nonce, err := c.Encrypt(plaintext, aad)
				require.NoError(t, err)
				assert.Len(t, nonce, cryptoDomain.NonceSize)

				decrypted, err := c.Decrypt(ciphertext, nonce, aad)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(plaintext, decrypted))
			}

			ciphertext, nonce, err := c.Encrypt([]byte("sk-123"), aad)
			require.NoError(t, err)

			for i := range ciphertext {
				tampered := bytes.Clone(ciphertext)
				tampered[i] ^= 0x01
				_, err := c.Decrypt(tampered, nonce, aad)
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
			}

			_, err = c.Decrypt(ciphertext, nonce, []byte("owner:bot2"))
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)

			_, err = c.Decrypt(ciphertext, nonce[:4], aad)
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		})
	}
}

func TestAEAD_EncryptWithNonce(t *testing.T) {
	c, err := NewAESGCM(randomKey(t))
	require.NoError(t, err)

	nonce := make([]byte, cryptoDomain.NonceSize)
	ciphertext, err := c.EncryptWithNonce(nonce, []byte("sk-456"), nil)
	require.NoError(t, err)

	plaintext, err := c.Decrypt(ciphertext, nonce, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("sk-456"), plaintext)

	_, err = c.EncryptWithNonce([]byte("short"), []byte("sk-456"), nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidNonceSize)

	cc, err := NewChaCha20Poly1305(randomKey(t))
	require.NoError(t, err)
	_, err = cc.EncryptWithNonce([]byte("short"), []byte("sk-456"), nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidNonceSize)
}

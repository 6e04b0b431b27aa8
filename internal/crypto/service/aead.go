package service

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// sealer adapts a stdlib cipher.AEAD to the AEAD interface. Both supported
// algorithms use 12-byte nonces and 16-byte tags appended to the ciphertext.
type sealer struct {
	aead cipher.AEAD
}

// Encrypt draws a random nonce and seals plaintext under it.
func (s sealer) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// EncryptWithNonce seals plaintext under a nonce issued by a NonceGuard.
func (s sealer) EncryptWithNonce(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, cryptoDomain.ErrInvalidNonceSize
	}
	return s.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext. Every failure, including a malformed nonce, surfaces as
// ErrDecryptionFailed so callers cannot tell a bad tag from bad framing.
func (s sealer) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

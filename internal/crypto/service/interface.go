// Package service provides the cryptographic primitives behind envelope encryption:
// AEAD ciphers, DEK wrapping under the KEK, nonce reuse protection, KMS access
// and keyed fingerprints.
package service

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext under a freshly drawn random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// EncryptWithNonce encrypts plaintext under a caller-supplied nonce. The caller
	// is responsible for never repeating a nonce under the same key.
	EncryptWithNonce(nonce, plaintext, aad []byte) ([]byte, error)

	// Decrypt authenticates and decrypts ciphertext. It returns ErrDecryptionFailed
	// and no plaintext when the tag does not verify.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyManager creates DEKs and wraps/unwraps their key material under KEKs.
type KeyManager interface {
	// CreateDek generates a DEK for ownerID wrapped under kek.
	CreateDek(kek *cryptoDomain.Kek, ownerID string, alg cryptoDomain.Algorithm) (*cryptoDomain.Dek, error)

	// DecryptDek unwraps the DEK key material. The caller must Zero the result.
	DecryptDek(dek *cryptoDomain.Dek, kek *cryptoDomain.Kek) ([]byte, error)

	// RewrapDek re-wraps the DEK key material under target, updating KekID,
	// EncryptedKey and Nonce in place.
	RewrapDek(dek *cryptoDomain.Dek, current, target *cryptoDomain.Kek) error
}

// NonceGuard issues nonces and refuses to hand out the same nonce twice for one DEK.
type NonceGuard interface {
	// Next draws a fresh random nonce for dekID.
	Next(dekID uuid.UUID) ([]byte, error)

	// Forget drops the nonce record of a DEK that will never encrypt again.
	Forget(dekID uuid.UUID)
}

// KMSKeeper is the subset of *secrets.Keeper the broker relies on.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens KMS keepers from gocloud.dev secret URLs.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

package domain

import (
	"github.com/allisson/secretbroker/internal/errors"
)

// Cryptographic error definitions.
//
// They wrap the sentinels in internal/errors so the HTTP layer can map them
// without knowing about cryptography.
var (
	// ErrUnsupportedAlgorithm indicates the requested AEAD algorithm is unknown.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a KEK or DEK is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidNonceSize indicates a nonce is not exactly NonceSize bytes.
	ErrInvalidNonceSize = errors.Wrap(errors.ErrInvalidInput, "invalid nonce size")

	// ErrInvalidOwnerID indicates an empty owner id was passed to the engine.
	ErrInvalidOwnerID = errors.Wrap(errors.ErrInvalidInput, "invalid owner id")

	// ErrDecryptionFailed indicates AEAD tag verification failed.
	//
	// The cause (tampered ciphertext, wrong nonce, wrong key or a ciphertext
	// presented with another owner's DEK) is deliberately not distinguished.
	ErrDecryptionFailed = errors.Wrap(errors.ErrIntegrity, "decryption failed")

	// ErrDekNotFound indicates no DEK exists with the requested id.
	ErrDekNotFound = errors.Wrap(errors.ErrNotFound, "dek not found")

	// ErrActiveDekConflict indicates another active DEK already exists for the owner,
	// typically created concurrently by another broker instance.
	ErrActiveDekConflict = errors.Wrap(errors.ErrConflict, "owner already has an active dek")

	// ErrDekRetired indicates the DEK was retired while it was about to be used.
	ErrDekRetired = errors.New("dek is retired")

	// ErrNonceReuse indicates a nonce was about to be used twice under the same DEK.
	// The operation is aborted before anything is encrypted or stored.
	ErrNonceReuse = errors.New("nonce reuse detected")

	// ErrNonceGuardFull indicates the in-process nonce record for a DEK reached its
	// capacity. The DEK has to be rotated before it can encrypt again.
	ErrNonceGuardFull = errors.New("nonce guard capacity reached")

	// ErrKekNotFound indicates a DEK references a KEK that is not loaded.
	ErrKekNotFound = errors.New("kek not found in chain")

	// ErrKeksNotSet indicates KEKS is empty.
	ErrKeksNotSet = errors.New("KEKS is not set")

	// ErrActiveKekIDNotSet indicates ACTIVE_KEK_ID is empty.
	ErrActiveKekIDNotSet = errors.New("ACTIVE_KEK_ID is not set")

	// ErrInvalidKeksFormat indicates a KEKS entry is not in "id:base64" form.
	ErrInvalidKeksFormat = errors.New("invalid KEKS format")

	// ErrInvalidKekBase64 indicates a KEKS entry is not valid base64.
	ErrInvalidKekBase64 = errors.New("invalid KEK base64")

	// ErrDuplicateKekID indicates two KEKS entries share an id.
	ErrDuplicateKekID = errors.New("duplicate KEK id")

	// ErrActiveKekNotFound indicates ACTIVE_KEK_ID is not among the loaded KEKs.
	ErrActiveKekNotFound = errors.New("active KEK not found")
)

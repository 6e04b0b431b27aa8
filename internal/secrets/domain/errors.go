package domain

import (
	"github.com/allisson/secretbroker/internal/errors"
)

// Secret-specific error definitions.
var (
	// ErrSecretNotFound indicates no secret exists for the owner and name.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrVersionNotFound indicates the requested version does not exist.
	ErrVersionNotFound = errors.Wrap(errors.ErrNotFound, "secret version not found")

	// ErrVersionRevoked indicates the requested version was revoked.
	ErrVersionRevoked = errors.Wrap(errors.ErrGone, "secret version revoked")

	// ErrNoActiveVersion indicates the active version was revoked and nothing replaced it.
	ErrNoActiveVersion = errors.Wrap(errors.ErrGone, "secret has no active version")

	// ErrVersionConflict indicates a concurrent writer took the version number.
	ErrVersionConflict = errors.Wrap(errors.ErrConflict, "secret version conflict")

	// ErrIdempotencyKeyReused indicates an idempotency key was replayed with a different payload.
	ErrIdempotencyKeyReused = errors.Wrap(errors.ErrConflict, "idempotency key reused with a different payload")

	// ErrIdempotencyRecordNotFound indicates no put was recorded under the idempotency key.
	ErrIdempotencyRecordNotFound = errors.Wrap(errors.ErrNotFound, "idempotency record not found")

	// ErrInvalidOwnerID indicates a malformed owner id.
	ErrInvalidOwnerID = errors.Wrap(errors.ErrInvalidInput, "invalid owner id")

	// ErrInvalidName indicates a malformed secret name.
	ErrInvalidName = errors.Wrap(errors.ErrInvalidInput, "invalid secret name")

	// ErrInvalidVersion indicates a version number below 1.
	ErrInvalidVersion = errors.Wrap(errors.ErrInvalidInput, "invalid version")

	// ErrInvalidIdempotencyKey indicates a malformed idempotency key.
	ErrInvalidIdempotencyKey = errors.Wrap(errors.ErrInvalidInput, "invalid idempotency key")
)

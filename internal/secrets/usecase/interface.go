// Package usecase implements the secret store: versioned secrets encrypted through
// the envelope engine, with per-secret serialization and idempotent puts.
package usecase

import (
	"context"
	"time"

	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// SecretRepository defines the interface for secret and version persistence.
// Every method honours a transaction carried in the context.
type SecretRepository interface {
	// EnsureSecret creates the secret head if it does not exist yet.
	EnsureSecret(ctx context.Context, ownerID, name string, now time.Time) error

	// Get returns the secret head. Returns ErrSecretNotFound.
	Get(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error)

	// GetForUpdate returns the secret head locked until the transaction ends.
	// Returns ErrSecretNotFound.
	GetForUpdate(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error)

	// UpdateHead persists ActiveVersion, LatestVersion and UpdatedAt.
	UpdateHead(ctx context.Context, secret *secretsDomain.Secret) error

	// CreateVersion inserts a new version. A taken version number yields
	// ErrVersionConflict; a repeated (dek_id, nonce) yields ErrNonceReuse.
	CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error

	// GetVersion returns one version including its ciphertext. Returns ErrVersionNotFound.
	GetVersion(ctx context.Context, ownerID, name string, version uint) (*secretsDomain.SecretVersion, error)

	// ListVersions returns version metadata in ascending order, without ciphertext.
	ListVersions(ctx context.Context, ownerID, name string, offset, limit int) ([]*secretsDomain.SecretVersion, error)

	// RevokeVersion marks a version revoked. Revoking twice keeps the first revoked_at.
	RevokeVersion(ctx context.Context, ownerID, name string, version uint, revokedAt time.Time) error
}

// IdempotencyRepository defines the interface for idempotency record persistence.
type IdempotencyRepository interface {
	// Get returns the record for the key. Returns ErrIdempotencyRecordNotFound.
	Get(ctx context.Context, ownerID, name, key string) (*secretsDomain.IdempotencyRecord, error)

	// Save inserts the record, replacing an existing one for the same key.
	Save(ctx context.Context, record *secretsDomain.IdempotencyRecord) error

	// DeleteOlderThan removes records created before olderThan. With dryRun it only counts them.
	DeleteOlderThan(ctx context.Context, olderThan time.Time, dryRun bool) (int64, error)
}

// Fingerprinter computes keyed fingerprints of request payloads.
type Fingerprinter interface {
	Sum(parts ...[]byte) (string, error)
	Matches(stored string, parts ...[]byte) (bool, error)
}

// SecretUseCase defines the interface for secret management business logic.
type SecretUseCase interface {
	// Put encrypts and stores a new version and makes it the active one. A put
	// repeated with the same idempotency key and payload returns the earlier
	// version with Replayed set and stores nothing.
	Put(ctx context.Context, input *secretsDomain.PutInput) (*secretsDomain.PutOutput, error)

	// Get decrypts the requested version, or the active one when version is nil.
	//
	// Security Note: The returned version contains plaintext data in the Plaintext field.
	// Callers MUST zero this data after use by calling cryptoDomain.Zero(version.Plaintext).
	Get(ctx context.Context, ownerID, name string, version *uint) (*secretsDomain.SecretVersion, error)

	// ListVersions returns the secret head and a page of version metadata.
	ListVersions(
		ctx context.Context,
		ownerID, name string,
		offset, limit int,
	) (*secretsDomain.Secret, []*secretsDomain.SecretVersion, error)

	// Revoke revokes a version. Revoking the active version leaves the secret
	// without an active version; nothing is promoted automatically.
	Revoke(ctx context.Context, ownerID, name string, version uint) (*secretsDomain.SecretVersion, error)

	// Promote makes a non-revoked version the active one.
	Promote(ctx context.Context, ownerID, name string, version uint) (*secretsDomain.SecretVersion, error)

	// PurgeIdempotencyKeys removes idempotency records past their TTL.
	PurgeIdempotencyKeys(ctx context.Context, dryRun bool) (int64, error)
}

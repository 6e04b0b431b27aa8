// Package usecase implements the envelope encryption engine.
//
// Every owner has at most one active DEK. Values are encrypted with that DEK
// under a fresh nonce, and the DEK itself is stored wrapped under the KEK chain
// held in memory. Retired DEKs keep decrypting the versions they produced, so
// rotation never re-encrypts stored values.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// DekRepository defines the interface for DEK persistence.
//
// Implementations must honour a transaction carried in the context (see
// database.GetTx) and must enforce at most one active DEK per owner with a
// unique constraint, reporting a violation as cryptoDomain.ErrActiveDekConflict.
//
// Available implementations:
//   - PostgreSQLDekRepository: partial unique index on owner_id WHERE status = 'active'
//   - MySQLDekRepository: unique index on a generated column that is NULL once retired
type DekRepository interface {
	// Create stores a new DEK.
	Create(ctx context.Context, dek *cryptoDomain.Dek) error

	// Get retrieves a DEK by id regardless of status. Returns ErrDekNotFound.
	Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error)

	// GetActiveByOwner retrieves the owner's active DEK. Returns ErrDekNotFound.
	GetActiveByOwner(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error)

	// Retire marks an active DEK retired. Returns ErrDekRetired when the DEK was
	// not active.
	Retire(ctx context.Context, dekID uuid.UUID, retiredAt time.Time) error

	// IncrementUsage bumps the usage counter of an active DEK and returns the new
	// count. Returns ErrDekRetired when the DEK was retired meanwhile.
	IncrementUsage(ctx context.Context, dekID uuid.UUID) (int64, error)

	// ListActiveCreatedBefore returns up to limit active DEKs created before the cutoff.
	ListActiveCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*cryptoDomain.Dek, error)

	// ListNotWrappedBy returns up to limit DEKs wrapped under a KEK other than
	// kekID, locking them for the surrounding transaction.
	ListNotWrappedBy(ctx context.Context, kekID string, limit int) ([]*cryptoDomain.Dek, error)

	// UpdateWrapping persists new KekID, EncryptedKey and Nonce for a DEK.
	UpdateWrapping(ctx context.Context, dek *cryptoDomain.Dek) error
}

// EnvelopeUseCase defines the envelope encryption engine.
type EnvelopeUseCase interface {
	// Wrap encrypts plaintext with the owner's active DEK, creating the DEK when
	// the owner has none and rotating it once a threshold is crossed.
	//
	// Wrap never reuses a nonce for a DEK within the process; a repeat aborts
	// the call with ErrNonceReuse. The caller keeps ownership of plaintext.
	Wrap(ctx context.Context, ownerID string, plaintext []byte) (*cryptoDomain.Envelope, error)

	// Unwrap decrypts an envelope produced by Wrap with the DEK it names, active
	// or retired. Any authentication failure, including a DEK that belongs to
	// another owner, yields an error wrapping ErrIntegrity and no plaintext.
	Unwrap(ctx context.Context, envelope *cryptoDomain.Envelope) ([]byte, error)

	// RotateDek retires the owner's active DEK and creates a new one.
	RotateDek(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error)

	// RotateExpiredDeks rotates active DEKs older than the configured maximum
	// age and returns how many were rotated.
	RotateExpiredDeks(ctx context.Context) (int, error)

	// RewrapDeks re-wraps up to batchSize DEKs under the active KEK and returns
	// how many were processed. Zero means every DEK is already current.
	RewrapDeks(ctx context.Context, batchSize int) (int, error)
}

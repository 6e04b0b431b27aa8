// Package domain defines the core domain models and types for secret management.
// A secret is identified by (owner id, name) and holds an append-only sequence of
// versions. Each version is encrypted with its owner's DEK at the time of writing
// and never changes afterwards, except for being revoked.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// VersionStatus is the lifecycle state of a secret version.
type VersionStatus string

const (
	// VersionStatusActive marks a version that may still be read.
	VersionStatusActive VersionStatus = "active"
	// VersionStatusRevoked marks a version that can no longer be read or promoted.
	VersionStatusRevoked VersionStatus = "revoked"
)

// Secret is the head of a secret's version history.
type Secret struct {
	OwnerID string
	Name    string
	// ActiveVersion is the version returned when no version is requested. It is
	// nil after the active version was revoked and nothing was promoted since.
	ActiveVersion *uint
	// LatestVersion is the highest version ever assigned, 0 before the first put.
	LatestVersion uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NextVersion returns the number the next put will receive.
func (s *Secret) NextVersion() uint {
	return s.LatestVersion + 1
}

// IsActiveVersion reports whether version is the secret's active version.
func (s *Secret) IsActiveVersion(version uint) bool {
	return s.ActiveVersion != nil && *s.ActiveVersion == version
}

// SecretVersion is one immutable encrypted value of a secret.
type SecretVersion struct {
	OwnerID    string
	Name       string
	Version    uint
	DekID      uuid.UUID
	Ciphertext []byte
	Nonce      []byte
	// Plaintext holds the decrypted value in memory only; must be zeroed after use.
	Plaintext []byte `json:"-"`
	Status    VersionStatus
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the version was revoked.
func (v *SecretVersion) IsRevoked() bool {
	return v.Status == VersionStatusRevoked
}

// Envelope returns the encrypted payload of the version for the engine.
func (v *SecretVersion) Envelope() *cryptoDomain.Envelope {
	return &cryptoDomain.Envelope{
		OwnerID:    v.OwnerID,
		Ciphertext: v.Ciphertext,
		Nonce:      v.Nonce,
		DekID:      v.DekID,
	}
}

// IdempotencyRecord remembers the outcome of a put made with an idempotency key.
type IdempotencyRecord struct {
	OwnerID string
	Name    string
	Key     string
	// RequestHash is a keyed fingerprint of the request payload, never a plain hash.
	RequestHash string
	Version     uint
	CreatedAt   time.Time
}

// PutInput contains the parameters for storing a new secret version.
type PutInput struct {
	OwnerID        string
	Name           string
	Plaintext      []byte
	IdempotencyKey string
}

// PutOutput describes the stored version.
type PutOutput struct {
	Version   uint
	CreatedAt time.Time
	// Replayed is true when the idempotency key matched an earlier identical put
	// and no version was created.
	Replayed bool
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dek is a Data Encryption Key owned by exactly one owner. EncryptedKey is the DEK
// wrapped under the KEK identified by KekID; the plaintext DEK is never persisted.
type Dek struct {
	ID           uuid.UUID
	OwnerID      string
	KekID        string
	Algorithm    Algorithm
	EncryptedKey []byte
	Nonce        []byte // nonce used to wrap EncryptedKey under the KEK
	Status       DekStatus
	UsageCount   int64
	CreatedAt    time.Time
	RetiredAt    *time.Time
}

// IsActive reports whether the DEK may encrypt new values.
func (d *Dek) IsActive() bool {
	return d.Status == DekStatusActive
}

// NeedsRotation reports whether the DEK crossed the age or usage threshold.
// A non-positive maxAge or maxUsages disables that threshold, but MaxDekUsages
// always applies.
func (d *Dek) NeedsRotation(now time.Time, maxAge time.Duration, maxUsages int64) bool {
	if d.UsageCount >= MaxDekUsages {
		return true
	}
	if maxUsages > 0 && d.UsageCount >= maxUsages {
		return true
	}
	if maxAge > 0 && now.Sub(d.CreatedAt) >= maxAge {
		return true
	}
	return false
}

// WrapAAD is the additional data binding a wrapped DEK to its id and owner, so a
// wrapped key copied onto another DEK row fails to unwrap.
func (d *Dek) WrapAAD() []byte {
	return []byte("dek:" + d.ID.String() + "|owner:" + d.OwnerID)
}

// DataAAD is the additional data binding a ciphertext to its owner and DEK.
func DataAAD(ownerID string, dekID uuid.UUID) []byte {
	return []byte("owner:" + ownerID + "|dek:" + dekID.String())
}

// Envelope is the output of the encryption engine: everything needed to decrypt
// a value except the keys themselves. OwnerID is the owner the ciphertext is
// claimed to belong to; decryption fails unless the DEK belongs to that owner.
type Envelope struct {
	OwnerID    string
	Ciphertext []byte
	Nonce      []byte
	DekID      uuid.UUID
}

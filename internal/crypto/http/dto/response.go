// Package dto provides data transfer objects for the key management endpoints.
package dto

import (
	"time"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// RotateDekResponse describes the DEK created by a rotation. Key material is never included.
type RotateDekResponse struct {
	DekID     string    `json:"dek_id"`
	OwnerID   string    `json:"owner_id"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
}

// MapDekToRotateResponse converts a DEK to its rotation response.
func MapDekToRotateResponse(dek *cryptoDomain.Dek) RotateDekResponse {
	return RotateDekResponse{
		DekID:     dek.ID.String(),
		OwnerID:   dek.OwnerID,
		Algorithm: string(dek.Algorithm),
		CreatedAt: dek.CreatedAt,
	}
}

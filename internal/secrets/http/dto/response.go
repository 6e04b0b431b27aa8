package dto

import (
	"time"

	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// PutSecretResponse is returned by a put. It never contains the value.
type PutSecretResponse struct {
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Version   uint      `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	RequestID string    `json:"request_id,omitempty"`
}

// MapPutOutputToResponse converts a put result to its API response.
func MapPutOutputToResponse(ownerID, name string, output *secretsDomain.PutOutput, requestID string) PutSecretResponse {
	return PutSecretResponse{
		OwnerID:   ownerID,
		Name:      name,
		Version:   output.Version,
		CreatedAt: output.CreatedAt,
		RequestID: requestID,
	}
}

// GetSecretResponse carries a decrypted secret version.
// SECURITY: Value holds plaintext and must be transmitted over HTTPS in production.
type GetSecretResponse struct {
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Version   uint      `json:"version"`
	Status    string    `json:"status"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	RequestID string    `json:"request_id,omitempty"`
}

// MapVersionToGetResponse converts a decrypted version to an API response. The
// caller must zero version.Plaintext once the response has been written.
func MapVersionToGetResponse(version *secretsDomain.SecretVersion, requestID string) GetSecretResponse {
	return GetSecretResponse{
		OwnerID:   version.OwnerID,
		Name:      version.Name,
		Version:   version.Version,
		Status:    string(version.Status),
		Value:     version.Plaintext,
		CreatedAt: version.CreatedAt,
		RequestID: requestID,
	}
}

// VersionResponse is the metadata of one secret version.
type VersionResponse struct {
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Version   uint       `json:"version"`
	Status    string     `json:"status"`
	DekID     string     `json:"dek_id"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// MapVersionToResponse converts version metadata to an API response.
func MapVersionToResponse(version *secretsDomain.SecretVersion) VersionResponse {
	return VersionResponse{
		OwnerID:   version.OwnerID,
		Name:      version.Name,
		Version:   version.Version,
		Status:    string(version.Status),
		DekID:     version.DekID.String(),
		CreatedAt: version.CreatedAt,
		RevokedAt: version.RevokedAt,
	}
}

// ListVersionsResponse is a page of version metadata plus the active version pointer,
// which is null when the active version was revoked.
type ListVersionsResponse struct {
	Data          []VersionResponse `json:"data"`
	ActiveVersion *uint             `json:"active_version"`
}

// MapVersionsToListResponse converts a secret head and its versions to a list response.
func MapVersionsToListResponse(
	secret *secretsDomain.Secret,
	versions []*secretsDomain.SecretVersion,
) ListVersionsResponse {
	data := make([]VersionResponse, 0, len(versions))
	for _, version := range versions {
		data = append(data, MapVersionToResponse(version))
	}

	return ListVersionsResponse{
		Data:          data,
		ActiveVersion: secret.ActiveVersion,
	}
}

package dto

import (
	"time"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// IssueTokenResponse contains the result of issuing a token.
// SECURITY: The token is only returned once and must be saved securely.
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse is the legacy login answer.
type LoginResponse struct {
	Token string `json:"token"`
}

// ValidateTokenResponse is the body of GET /api/v1/auth/validate. Its shape is the
// contract consumed by the remote authenticator.
type ValidateTokenResponse struct {
	Status string   `json:"status"`
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}

// MapPrincipalToValidateResponse converts a principal to a "valid" answer.
func MapPrincipalToValidateResponse(principal *authDomain.Principal) ValidateTokenResponse {
	scopes := principal.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return ValidateTokenResponse{
		Status: "valid",
		UserID: principal.ID,
		Scopes: scopes,
	}
}

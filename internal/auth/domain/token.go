package domain

import (
	"time"

	"github.com/google/uuid"
)

// Token is an issued bearer token. Only its SHA-256 hash is stored.
type Token struct {
	ID        uuid.UUID
	TokenHash string
	ClientID  uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsValid reports whether the token can still authenticate at now.
func (t *Token) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// IssueTokenInput carries client credentials for token issuance.
type IssueTokenInput struct {
	ClientID     uuid.UUID
	ClientSecret string //nolint:gosec // transient credential, never persisted
}

// IssueTokenOutput is the result of a successful issuance. PlainToken is shown once.
type IssueTokenOutput struct {
	PlainToken string
	ExpiresAt  time.Time
}

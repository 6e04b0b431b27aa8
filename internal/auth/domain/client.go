package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a locally registered caller. Clients exchange their secret for
// an opaque bearer token and act with the scopes recorded here.
type Client struct {
	ID             uuid.UUID // Unique identifier (UUIDv7)
	Secret         string    //nolint:gosec // hashed client secret (not plaintext)
	Name           string
	IsActive       bool
	Scopes         []string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
}

// IsLocked reports whether the client is inside a lockout window at now.
func (c *Client) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// Principal returns the identity the client acts as.
func (c *Client) Principal() *Principal {
	scopes := make([]string, len(c.Scopes))
	copy(scopes, c.Scopes)
	return &Principal{ID: c.ID.String(), Scopes: scopes, Source: PrincipalSourceLocal}
}

// CreateClientInput contains the parameters for creating a new authentication client.
// The client secret is generated and cannot be chosen by the caller.
type CreateClientInput struct {
	Name     string
	IsActive bool
	Scopes   []string
}

// CreateClientOutput contains the result of creating a new client.
// The PlainSecret is only returned once and is never retrievable again.
type CreateClientOutput struct {
	ID          uuid.UUID
	PlainSecret string
}

// UpdateClientInput contains the mutable fields of a client.
type UpdateClientInput struct {
	Name     string
	IsActive bool
	Scopes   []string
}

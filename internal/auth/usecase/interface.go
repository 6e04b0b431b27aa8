// Package usecase defines business logic interfaces for authentication and authorization operations.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// ClientRepository defines persistence operations for authentication clients.
// Implementations must support transaction-aware operations via context propagation.
type ClientRepository interface {
	// Create stores a new client in the repository.
	Create(ctx context.Context, client *authDomain.Client) error

	// Update modifies name, active flag and scopes of an existing client.
	Update(ctx context.Context, client *authDomain.Client) error

	// Get retrieves a client by ID. Returns ErrClientNotFound if not found.
	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)

	// IncrementFailedAttempts adds one failed attempt in a single statement and returns
	// the new count, so concurrent failures are all counted.
	IncrementFailedAttempts(ctx context.Context, clientID uuid.UUID) (int, error)

	// UpdateLockState records failed attempts and the lockout deadline.
	UpdateLockState(ctx context.Context, clientID uuid.UUID, failedAttempts int, lockedUntil *time.Time) error

	// UpdateSecret replaces the stored secret hash and clears any lockout.
	// Returns ErrClientNotFound if the client does not exist.
	UpdateSecret(ctx context.Context, clientID uuid.UUID, hashedSecret string) error
}

// TokenRepository defines persistence operations for authentication tokens.
type TokenRepository interface {
	// Create stores a new token in the repository.
	Create(ctx context.Context, token *authDomain.Token) error

	// GetByTokenHash retrieves a token by its SHA-256 hash. Returns ErrTokenNotFound if not found.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error)

	// DeleteExpired removes tokens that expired before the given time. With dryRun it
	// only counts them.
	DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error)

	// RevokeByClientID marks every unrevoked token of the client as revoked at the given
	// time and returns how many were revoked.
	RevokeByClientID(ctx context.Context, clientID uuid.UUID, revokedAt time.Time) (int64, error)
}

// AuditSink receives signed audit events from the dispatcher.
type AuditSink interface {
	Write(ctx context.Context, event *authDomain.AuditEvent) error
}

// Authenticator resolves a plain bearer token to a principal. Implementations
// return ErrInvalidCredentials for unusable tokens and ErrUnavailable when the
// answer cannot be determined.
type Authenticator interface {
	Authenticate(ctx context.Context, plainToken string) (*authDomain.Principal, error)
}

// Authorizer decides whether a principal may perform an action on an owner's secrets.
// It returns nil to allow and ErrAccessDenied to deny. Every decision is audited.
type Authorizer interface {
	Authorize(ctx context.Context, principal *authDomain.Principal, action authDomain.Action, ownerID string) error
}

// ClientUseCase defines business logic operations for managing authentication clients.
type ClientUseCase interface {
	// Create generates a new client with a random secret hashed with Argon2id.
	// The returned PlainSecret is only available once.
	Create(
		ctx context.Context,
		createClientInput *authDomain.CreateClientInput,
	) (*authDomain.CreateClientOutput, error)

	// Update replaces name, active status and scopes.
	// Returns ErrClientNotFound if the specified client doesn't exist.
	Update(ctx context.Context, clientID uuid.UUID, updateClientInput *authDomain.UpdateClientInput) error

	// Get retrieves a client by ID.
	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)

	// Unlock clears the lockout state for a client.
	Unlock(ctx context.Context, clientID uuid.UUID) error

	// RotateSecret replaces the client secret and revokes the client's tokens. The new
	// PlainSecret is only available once.
	RotateSecret(ctx context.Context, clientID uuid.UUID) (*authDomain.CreateClientOutput, error)
}

// TokenUseCase issues and validates locally managed bearer tokens. It is the
// local Authenticator.
type TokenUseCase interface {
	Authenticator

	// Issue exchanges client credentials for a new token.
	Issue(
		ctx context.Context,
		issueTokenInput *authDomain.IssueTokenInput,
	) (*authDomain.IssueTokenOutput, error)

	// PurgeExpired deletes tokens that expired more than olderThan ago.
	PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error)
}

// AuditLogUseCase records audit events without ever failing or blocking the caller.
type AuditLogUseCase interface {
	// Record signs the event and queues it for delivery. A full queue drops the event.
	Record(ctx context.Context, event *authDomain.AuditEvent)

	// Run delivers queued events to the sink until ctx is done, then flushes what is left.
	Run(ctx context.Context) error

	// Dropped returns the number of events lost to a full queue.
	Dropped() uint64
}

package domain

import (
	"github.com/allisson/secretbroker/internal/errors"
)

// Authentication and authorization errors.
var (
	// ErrClientNotFound indicates a client with the specified ID was not found.
	ErrClientNotFound = errors.Wrap(errors.ErrNotFound, "client not found")

	// ErrTokenNotFound indicates no token matches the given hash.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrInvalidCredentials covers unknown clients, wrong secrets and unusable tokens alike.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")

	// ErrClientInactive indicates the client exists but is disabled.
	ErrClientInactive = errors.Wrap(errors.ErrForbidden, "client is inactive")

	// ErrClientLocked indicates too many failed authentication attempts.
	ErrClientLocked = errors.Wrap(errors.ErrLocked, "client is locked")

	// ErrAccessDenied indicates the principal lacks the required scope.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")

	// ErrInvalidScope indicates a scope string that is not "secret:<action>:<owner_id>".
	ErrInvalidScope = errors.Wrap(errors.ErrInvalidInput, "invalid scope")

	// ErrSignatureInvalid indicates an audit event signature does not verify.
	ErrSignatureInvalid = errors.Wrap(errors.ErrIntegrity, "audit signature is invalid")
)

// Package service holds the credential primitives behind broker authentication: client
// secret hashing, bearer token generation, audit signing and the remote auth client.
package service

import (
	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// ClientSecretService generates and verifies the secrets clients exchange for tokens
// in local auth mode. These are client credentials, not stored broker secrets.
type ClientSecretService interface {
	// GenerateSecret creates a new cryptographically secure random secret.
	// Returns both the plain text secret (to be shared with the client) and
	// the hashed version (to be stored in the database).
	//
	// The plain secret should be treated as sensitive data and only displayed
	// once to the client during creation.
	GenerateSecret() (plainSecret string, hashedSecret string, error error)

	// HashSecret hashes a plain text secret using a secure hashing algorithm.
	// Used when clients need to regenerate or update their secrets.
	HashSecret(plainSecret string) (hashedSecret string, error error)

	// CompareSecret compares a plain text secret against a hashed secret in constant
	// time. An empty hashedSecret stands for an unknown client and never matches.
	CompareSecret(plainSecret string, hashedSecret string) bool
}

// TokenService defines operations for authentication token generation and hashing.
// Implementations must use cryptographically secure random generation and
// fast hashing algorithms suitable for short-lived tokens (e.g., SHA-256).
type TokenService interface {
	// GenerateToken creates a new cryptographically secure random token.
	// Returns both the plain text token (to be shared with the client) and
	// the hashed version (to be stored in the database).
	//
	// The plain token should be treated as sensitive data and only displayed
	// once to the client during token issuance.
	GenerateToken() (plainToken string, tokenHash string, error error)

	// HashToken hashes a plain text token using SHA-256.
	// Used for token validation by comparing hashes.
	HashToken(plainToken string) string
}

// AuditSigner signs audit events so tampering in the outbox or the logging
// service can be detected. Keys are derived from a KEK and never used directly.
type AuditSigner interface {
	// Sign returns the HMAC-SHA256 signature of the event's canonical form.
	Sign(kekKey []byte, event *authDomain.AuditEvent) ([]byte, error)

	// Verify returns ErrSignatureInvalid when event.Signature does not match.
	Verify(kekKey []byte, event *authDomain.AuditEvent) error
}

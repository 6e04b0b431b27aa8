// Package errors holds the sentinel errors shared by every domain of the broker.
// Use cases wrap them with context, and the HTTP layer maps them to status codes
// with errors.Is, so no infrastructure error type leaks past a repository.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the resource does not exist, or is hidden from the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a uniqueness rule was violated, for example an idempotency key
	// reused with a different payload.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput: the request failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized: missing, expired or unknown credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden: the principal is authenticated but lacks the scope.
	ErrForbidden = errors.New("forbidden")

	// ErrLocked: the client is locked out after repeated failed authentications.
	ErrLocked = errors.New("locked")

	// ErrGone: the secret existed but was revoked.
	ErrGone = errors.New("gone")

	// ErrIntegrity: authenticated decryption failed. Stored bytes were altered or
	// paired with the wrong key.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrUnavailable: a dependency (database, KMS, remote service) timed out or could
	// not be reached. Safe to retry.
	ErrUnavailable = errors.New("unavailable")
)

// New returns an error with message.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapCause classifies cause as sentinel while keeping both in the chain, so that
// errors.Is matches either one. The message reads "message: cause: sentinel".
func WrapCause(sentinel, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, cause, sentinel)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

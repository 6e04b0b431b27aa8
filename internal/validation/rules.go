// Package validation holds the jellydator/validation rules shared by the broker's
// request DTOs and domain inputs.
package validation

import (
	"encoding/base64"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

var (
	// identifierRegex matches owner ids and secret names: a letter or digit followed by
	// letters, digits, dots, underscores or dashes.
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

	// idempotencyKeyRegex matches printable ASCII without spaces.
	idempotencyKeyRegex = regexp.MustCompile(`^[\x21-\x7e]+$`)

	// scopeRegex matches secret:<action>:<owner> scopes, wildcards included.
	scopeRegex = regexp.MustCompile(`^secret:(\*|[a-z]+):(\*|[A-Za-z0-9][A-Za-z0-9._-]*)$`)
)

const (
	// MaxIdentifierLength bounds owner ids and secret names.
	MaxIdentifierLength = 128
	// MaxIdempotencyKeyLength bounds idempotency keys.
	MaxIdempotencyKeyLength = 255
)

// WrapValidationError turns a validation failure into ErrInvalidInput so the HTTP layer
// answers 422.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Identifier validates owner ids and secret names.
var Identifier = validation.NewStringRuleWithError(
	func(s string) bool {
		return len(s) <= MaxIdentifierLength && identifierRegex.MatchString(s)
	},
	validation.NewError(
		"validation_identifier",
		"must start with a letter or digit and contain only letters, digits, '.', '_' or '-' (max 128)",
	),
)

// IdempotencyKey validates client supplied idempotency keys.
var IdempotencyKey = validation.NewStringRuleWithError(
	func(s string) bool {
		return len(s) <= MaxIdempotencyKeyLength && idempotencyKeyRegex.MatchString(s)
	},
	validation.NewError("validation_idempotency_key", "must be printable ASCII without spaces (max 255)"),
)

// Scope validates a secret:<action>:<owner> scope string.
var Scope = validation.NewStringRuleWithError(
	func(s string) bool {
		return scopeRegex.MatchString(s)
	},
	validation.NewError("validation_scope", "must look like secret:<action>:<owner_id>"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Base64 validates standard base64 payloads. Empty strings are left to Required.
var Base64 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := base64.StdEncoding.DecodeString(s)
		return err == nil
	},
	validation.NewError("validation_base64", "must be valid base64-encoded data"),
)

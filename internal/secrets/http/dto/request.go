// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"
	"errors"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/secretbroker/internal/validation"
)

// ErrIdempotencyKeyMismatch is returned when the header and the body carry different keys.
var ErrIdempotencyKeyMismatch = errors.New(
	"idempotency_key: header and body carry different idempotency keys",
)

// PutSecretRequest contains the parameters for storing a new secret version.
// The owner id and name are extracted from the URL, not the request body.
type PutSecretRequest struct {
	// Value is the base64-encoded plaintext.
	Value          string `json:"value"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Validate checks if the put secret request is valid.
func (r *PutSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Value,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.IdempotencyKey,
			validation.Length(1, customValidation.MaxIdempotencyKeyLength),
			customValidation.IdempotencyKey,
		),
	)
}

// DecodeValue returns the decoded plaintext. Validate must have succeeded first.
func (r *PutSecretRequest) DecodeValue() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Value)
}

// ResolveIdempotencyKey merges the Idempotency-Key header into the request. When both
// are set they must agree.
func (r *PutSecretRequest) ResolveIdempotencyKey(header string) error {
	switch {
	case header == "":
		return nil
	case r.IdempotencyKey == "":
		r.IdempotencyKey = header
		return nil
	case r.IdempotencyKey != header:
		return ErrIdempotencyKeyMismatch
	default:
		return nil
	}
}

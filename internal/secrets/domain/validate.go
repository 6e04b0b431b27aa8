package domain

import (
	customValidation "github.com/allisson/secretbroker/internal/validation"
)

// ValidateOwnerID checks ownerID is a well formed identifier.
func ValidateOwnerID(ownerID string) error {
	if ownerID == "" || customValidation.Identifier.Validate(ownerID) != nil {
		return ErrInvalidOwnerID
	}
	return nil
}

// ValidateRef checks the owner id and secret name of a secret reference.
func ValidateRef(ownerID, name string) error {
	if err := ValidateOwnerID(ownerID); err != nil {
		return err
	}
	if name == "" || customValidation.Identifier.Validate(name) != nil {
		return ErrInvalidName
	}
	return nil
}

// ValidateVersion checks version is a valid version number.
func ValidateVersion(version uint) error {
	if version < 1 {
		return ErrInvalidVersion
	}
	return nil
}

// Validate checks the put input. The plaintext may be empty.
func (p *PutInput) Validate() error {
	if err := ValidateRef(p.OwnerID, p.Name); err != nil {
		return err
	}
	if p.IdempotencyKey != "" && customValidation.IdempotencyKey.Validate(p.IdempotencyKey) != nil {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

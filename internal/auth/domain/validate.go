package domain

import (
	validation "github.com/jellydator/validation"

	"github.com/allisson/secretbroker/internal/errors"
	customValidation "github.com/allisson/secretbroker/internal/validation"
)

// ValidateScopes checks that every scope is either the admin scope or names a known
// action and a concrete owner. At least one scope is required.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return errors.Wrap(ErrInvalidScope, "at least one scope is required")
	}
	for _, raw := range scopes {
		if err := validation.Validate(raw, validation.Required, customValidation.Scope); err != nil {
			return errors.Wrapf(ErrInvalidScope, "%q: %v", raw, err)
		}
		scope, ok := ParseScope(raw)
		if !ok {
			return errors.Wrapf(ErrInvalidScope, "%q", raw)
		}
		if scope.IsAdmin() {
			continue
		}
		if !Action(scope.Action).Valid() {
			return errors.Wrapf(ErrInvalidScope, "%q: unknown action", raw)
		}
		if scope.Owner == Wildcard || scope.Action == Wildcard {
			return errors.Wrapf(ErrInvalidScope, "%q: wildcards are only allowed in %s", raw, AdminScope)
		}
	}
	return nil
}

// Package dto provides data transfer objects for the token endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/secretbroker/internal/validation"
)

// IssueTokenRequest contains the parameters for issuing an authentication token.
type IssueTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"` //nolint:gosec // transient credential
}

// Validate checks if the issue token request is valid.
func (r *IssueTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ClientID,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.ClientSecret,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// LoginRequest is the legacy credential exchange. Username carries the client id and
// password the client secret; both may come from the form body or the query string.
type LoginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"` //nolint:gosec // transient credential
}

// Validate checks if the login request is valid.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Password, validation.Required, customValidation.NotBlank),
	)
}

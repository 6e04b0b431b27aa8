// Package domain defines authentication and authorization domain models.
// Access is granted through scopes of the form "secret:<action>:<owner_id>" carried by a
// Principal; the admin scope "secret:*:*" grants every action on every owner.
package domain

// Action is an operation a principal may perform on an owner's secrets.
type Action string

const (
	// ActionRead allows reading secret values and version metadata.
	ActionRead Action = "read"

	// ActionWrite allows storing new versions and promoting existing ones.
	ActionWrite Action = "write"

	// ActionRevoke allows revoking secret versions.
	ActionRevoke Action = "revoke"

	// ActionRotate allows forcing a data encryption key rotation for an owner.
	ActionRotate Action = "rotate"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionRevoke, ActionRotate:
		return true
	}
	return false
}

// Decision is the outcome of an authorization check.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

const (
	// ScopePrefix is the resource prefix shared by every scope.
	ScopePrefix = "secret"

	// Wildcard matches any action or owner, but only inside the admin scope.
	Wildcard = "*"

	// AdminScope grants every action on every owner.
	AdminScope = "secret:*:*"
)

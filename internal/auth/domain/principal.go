package domain

import (
	"slices"
	"strings"
)

// PrincipalSource names the authenticator that produced a principal.
type PrincipalSource string

const (
	PrincipalSourceLocal  PrincipalSource = "local"
	PrincipalSourceRemote PrincipalSource = "remote"
)

// Principal is an authenticated caller and the scopes it holds. Source is kept
// off the wire so the validate response keeps its legacy shape.
type Principal struct {
	ID     string          `json:"user_id"`
	Scopes []string        `json:"scopes"`
	Source PrincipalSource `json:"-"`
}

// Scope is a parsed "secret:<action>:<owner_id>" string.
type Scope struct {
	Action string
	Owner  string
}

// ParseScope splits a scope string. Anything not shaped as three non-empty
// colon-separated parts starting with "secret" is rejected.
func ParseScope(raw string) (Scope, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != ScopePrefix || parts[1] == "" || parts[2] == "" {
		return Scope{}, false
	}
	return Scope{Action: parts[1], Owner: parts[2]}, true
}

// String renders the scope in its wire form.
func (s Scope) String() string {
	return ScopePrefix + ":" + s.Action + ":" + s.Owner
}

// IsAdmin reports whether s is the admin wildcard scope.
func (s Scope) IsAdmin() bool {
	return s.Action == Wildcard && s.Owner == Wildcard
}

// Grants reports whether s allows action on ownerID. Partial wildcards such as
// "secret:read:*" grant nothing; only the full admin scope uses wildcards.
func (s Scope) Grants(action Action, ownerID string) bool {
	if s.IsAdmin() {
		return true
	}
	if s.Action == Wildcard || s.Owner == Wildcard {
		return false
	}
	return s.Action == string(action) && s.Owner == ownerID
}

// NewScope builds the scope required for action on ownerID.
func NewScope(action Action, ownerID string) string {
	return Scope{Action: string(action), Owner: ownerID}.String()
}

// IsAllowed reports whether the principal holds a scope granting action on ownerID.
// A nil principal, an empty principal id, an unknown action or an empty owner never match.
func (p *Principal) IsAllowed(action Action, ownerID string) bool {
	if p == nil || p.ID == "" || ownerID == "" || !action.Valid() {
		return false
	}
	return slices.ContainsFunc(p.Scopes, func(raw string) bool {
		scope, ok := ParseScope(raw)
		return ok && scope.Grants(action, ownerID)
	})
}

// IsAdmin reports whether the principal holds the admin scope.
func (p *Principal) IsAdmin() bool {
	return p != nil && slices.Contains(p.Scopes, AdminScope)
}

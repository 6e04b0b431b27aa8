package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  Scope
		valid bool
	}{
		{"owner scope", "secret:read:bot1", Scope{Action: "read", Owner: "bot1"}, true},
		{"admin", "secret:*:*", Scope{Action: "*", Owner: "*"}, true},
		{"wrong prefix", "vault:read:bot1", Scope{}, false},
		{"missing owner", "secret:read:", Scope{}, false},
		{"too many parts", "secret:read:bot1:extra", Scope{}, false},
		{"empty", "", Scope{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseScope(tt.raw)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrincipal_IsAllowed(t *testing.T) {
	reader := &Principal{ID: "svc-a", Scopes: []string{"secret:read:bot1", "secret:write:bot2"}}
	admin := &Principal{ID: "root", Scopes: []string{AdminScope}}

	tests := []struct {
		name      string
		principal *Principal
		action    Action
		owner     string
		want      bool
	}{
		{"exact scope", reader, ActionRead, "bot1", true},
		{"other action on same owner", reader, ActionWrite, "bot1", false},
		{"same action on other owner", reader, ActionRead, "bot2", false},
		{"revoke needs its own scope", reader, ActionRevoke, "bot1", false},
		{"admin reads anything", admin, ActionRead, "bot9", true},
		{"admin rotates anything", admin, ActionRotate, "bot9", true},
		{"nil principal", nil, ActionRead, "bot1", false},
		{"empty principal id", &Principal{Scopes: []string{AdminScope}}, ActionRead, "bot1", false},
		{"empty owner", admin, ActionRead, "", false},
		{"unknown action", admin, Action("delete"), "bot1", false},
		{"partial wildcard owner", &Principal{ID: "p", Scopes: []string{"secret:read:*"}}, ActionRead, "bot1", false},
		{"partial wildcard action", &Principal{ID: "p", Scopes: []string{"secret:*:bot1"}}, ActionRead, "bot1", false},
		{"malformed scope", &Principal{ID: "p", Scopes: []string{"read:bot1"}}, ActionRead, "bot1", false},
		{"case sensitive owner", reader, ActionRead, "BOT1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.principal.IsAllowed(tt.action, tt.owner))
		})
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	assert.True(t, (&Principal{ID: "root", Scopes: []string{AdminScope}}).IsAdmin())
	assert.False(t, (&Principal{ID: "svc", Scopes: []string{"secret:read:bot1"}}).IsAdmin())
	assert.False(t, (*Principal)(nil).IsAdmin())
}

func TestNewScope(t *testing.T) {
	assert.Equal(t, "secret:revoke:bot1", NewScope(ActionRevoke, "bot1"))
}

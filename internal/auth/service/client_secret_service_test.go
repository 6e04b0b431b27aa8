package service

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInteractiveService(t *testing.T) ClientSecretService {
	t.Helper()
	service, err := NewClientSecretService(HashPolicyInteractive)
	require.NoError(t, err)
	return service
}

func TestNewClientSecretService(t *testing.T) {
	for _, policy := range []string{"", HashPolicyModerate, HashPolicyInteractive} {
		service, err := NewClientSecretService(policy)
		require.NoError(t, err, policy)
		assert.NotEmpty(t, service.(*clientSecretService).decoy)
	}

	_, err := NewClientSecretService("weak")
	assert.ErrorContains(t, err, "unknown client secret hash policy")
}

func TestClientSecretService_GenerateSecret(t *testing.T) {
	service := newInteractiveService(t)

	plain1, hash1, err := service.GenerateSecret()
	require.NoError(t, err)
	plain2, hash2, err := service.GenerateSecret()
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(plain1)
	require.NoError(t, err)
	assert.Len(t, decoded, clientSecretLength)

	assert.Contains(t, hash1, "$argon2id$")
	assert.NotEqual(t, plain1, plain2)
	assert.NotEqual(t, hash1, hash2)
	assert.True(t, service.CompareSecret(plain1, hash1))
	assert.False(t, service.CompareSecret(plain2, hash1))
}

func TestClientSecretService_HashSecret(t *testing.T) {
	service := newInteractiveService(t)

	hash1, err := service.HashSecret("svc-billing-secret")
	require.NoError(t, err)
	hash2, err := service.HashSecret("svc-billing-secret")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "salted")
	assert.True(t, service.CompareSecret("svc-billing-secret", hash1))
	assert.True(t, service.CompareSecret("svc-billing-secret", hash2))
}

func TestClientSecretService_CompareSecret(t *testing.T) {
	service := newInteractiveService(t)
	hashed, err := service.HashSecret("CaseSensitive")
	require.NoError(t, err)

	tests := []struct {
		name   string
		plain  string
		hashed string
		want   bool
	}{
		{"match", "CaseSensitive", hashed, true},
		{"wrong case", "casesensitive", hashed, false},
		{"empty plain", "", hashed, false},
		{"malformed hash", "CaseSensitive", "invalid-hash-format", false},
		{"unknown client uses decoy", "CaseSensitive", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.CompareSecret(tt.plain, tt.hashed))
		})
	}
}

// Package mocks provides test doubles for the secrets use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// MockSecretUseCase is a mock implementation of SecretUseCase for testing.
type MockSecretUseCase struct {
	mock.Mock
}

// NewMockSecretUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockSecretUseCase(t *testing.T) *MockSecretUseCase {
	m := &MockSecretUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Put mocks the Put method of SecretUseCase.
func (m *MockSecretUseCase) Put(
	ctx context.Context,
	input *secretsDomain.PutInput,
) (*secretsDomain.PutOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.PutOutput), args.Error(1)
}

// Get mocks the Get method of SecretUseCase.
func (m *MockSecretUseCase) Get(
	ctx context.Context,
	ownerID, name string,
	version *uint,
) (*secretsDomain.SecretVersion, error) {
	args := m.Called(ctx, ownerID, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.SecretVersion), args.Error(1)
}

// ListVersions mocks the ListVersions method of SecretUseCase.
func (m *MockSecretUseCase) ListVersions(
	ctx context.Context,
	ownerID, name string,
	offset, limit int,
) (*secretsDomain.Secret, []*secretsDomain.SecretVersion, error) {
	args := m.Called(ctx, ownerID, name, offset, limit)
	var head *secretsDomain.Secret
	if v := args.Get(0); v != nil {
		head = v.(*secretsDomain.Secret)
	}
	var versions []*secretsDomain.SecretVersion
	if v := args.Get(1); v != nil {
		versions = v.([]*secretsDomain.SecretVersion)
	}
	return head, versions, args.Error(2)
}

// Revoke mocks the Revoke method of SecretUseCase.
func (m *MockSecretUseCase) Revoke(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	args := m.Called(ctx, ownerID, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.SecretVersion), args.Error(1)
}

// Promote mocks the Promote method of SecretUseCase.
func (m *MockSecretUseCase) Promote(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	args := m.Called(ctx, ownerID, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.SecretVersion), args.Error(1)
}

// PurgeIdempotencyKeys mocks the PurgeIdempotencyKeys method of SecretUseCase.
func (m *MockSecretUseCase) PurgeIdempotencyKeys(ctx context.Context, dryRun bool) (int64, error) {
	args := m.Called(ctx, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

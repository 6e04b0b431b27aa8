// Package mocks provides testify mocks of the auth use case interfaces.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// MockTokenUseCase is a mock implementation of TokenUseCase.
type MockTokenUseCase struct {
	mock.Mock
}

// NewMockTokenUseCase creates a MockTokenUseCase whose expectations are asserted on cleanup.
func NewMockTokenUseCase(t *testing.T) *MockTokenUseCase {
	m := &MockTokenUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Issue mocks the Issue method of TokenUseCase.
func (m *MockTokenUseCase) Issue(
	ctx context.Context,
	input *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.IssueTokenOutput), args.Error(1)
}

// Authenticate mocks the Authenticate method of TokenUseCase.
func (m *MockTokenUseCase) Authenticate(ctx context.Context, plainToken string) (*authDomain.Principal, error) {
	args := m.Called(ctx, plainToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Principal), args.Error(1)
}

// PurgeExpired mocks the PurgeExpired method of TokenUseCase.
func (m *MockTokenUseCase) PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	args := m.Called(ctx, olderThan, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuthenticator is a mock implementation of Authenticator.
type MockAuthenticator struct {
	mock.Mock
}

// NewMockAuthenticator creates a MockAuthenticator whose expectations are asserted on cleanup.
func NewMockAuthenticator(t *testing.T) *MockAuthenticator {
	m := &MockAuthenticator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Authenticate mocks the Authenticate method of Authenticator.
func (m *MockAuthenticator) Authenticate(ctx context.Context, plainToken string) (*authDomain.Principal, error) {
	args := m.Called(ctx, plainToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Principal), args.Error(1)
}

// MockAuthorizer is a mock implementation of Authorizer.
type MockAuthorizer struct {
	mock.Mock
}

// NewMockAuthorizer creates a MockAuthorizer whose expectations are asserted on cleanup.
func NewMockAuthorizer(t *testing.T) *MockAuthorizer {
	m := &MockAuthorizer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Authorize mocks the Authorize method of Authorizer.
func (m *MockAuthorizer) Authorize(
	ctx context.Context,
	principal *authDomain.Principal,
	action authDomain.Action,
	ownerID string,
) error {
	args := m.Called(ctx, principal, action, ownerID)
	return args.Error(0)
}

// MockClientRepository is a mock implementation of ClientRepository.
type MockClientRepository struct {
	mock.Mock
}

// NewMockClientRepository creates a MockClientRepository whose expectations are asserted on cleanup.
func NewMockClientRepository(t *testing.T) *MockClientRepository {
	m := &MockClientRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method of ClientRepository.
func (m *MockClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	return m.Called(ctx, client).Error(0)
}

// Update mocks the Update method of ClientRepository.
func (m *MockClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	return m.Called(ctx, client).Error(0)
}

// Get mocks the Get method of ClientRepository.
func (m *MockClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Client), args.Error(1)
}

func (m *MockClientRepository) IncrementFailedAttempts(ctx context.Context, clientID uuid.UUID) (int, error) {
	args := m.Called(ctx, clientID)
	return args.Int(0), args.Error(1)
}

// UpdateLockState mocks the UpdateLockState method of ClientRepository.
func (m *MockClientRepository) UpdateLockState(
	ctx context.Context,
	clientID uuid.UUID,
	failedAttempts int,
	lockedUntil *time.Time,
) error {
	return m.Called(ctx, clientID, failedAttempts, lockedUntil).Error(0)
}

// UpdateSecret mocks the UpdateSecret method of ClientRepository.
func (m *MockClientRepository) UpdateSecret(ctx context.Context, clientID uuid.UUID, hashedSecret string) error {
	args := m.Called(ctx, clientID, hashedSecret)
	return args.Error(0)
}

// MockTokenRepository is a mock implementation of TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

// NewMockTokenRepository creates a MockTokenRepository whose expectations are asserted on cleanup.
func NewMockTokenRepository(t *testing.T) *MockTokenRepository {
	m := &MockTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method of TokenRepository.
func (m *MockTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	return m.Called(ctx, token).Error(0)
}

// GetByTokenHash mocks the GetByTokenHash method of TokenRepository.
func (m *MockTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Token), args.Error(1)
}

// DeleteExpired mocks the DeleteExpired method of TokenRepository.
func (m *MockTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// RevokeByClientID mocks the RevokeByClientID method of TokenRepository.
func (m *MockTokenRepository) RevokeByClientID(
	ctx context.Context,
	clientID uuid.UUID,
	revokedAt time.Time,
) (int64, error) {
	args := m.Called(ctx, clientID, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

// MockClientUseCase is a mock implementation of ClientUseCase.
type MockClientUseCase struct {
	mock.Mock
}

// NewMockClientUseCase creates a MockClientUseCase whose expectations are asserted on cleanup.
func NewMockClientUseCase(t *testing.T) *MockClientUseCase {
	m := &MockClientUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method of ClientUseCase.
func (m *MockClientUseCase) Create(
	ctx context.Context,
	input *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.CreateClientOutput), args.Error(1)
}

// Update mocks the Update method of ClientUseCase.
func (m *MockClientUseCase) Update(ctx context.Context, clientID uuid.UUID, input *authDomain.UpdateClientInput) error {
	args := m.Called(ctx, clientID, input)
	return args.Error(0)
}

// Get mocks the Get method of ClientUseCase.
func (m *MockClientUseCase) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Client), args.Error(1)
}

// Unlock mocks the Unlock method of ClientUseCase.
func (m *MockClientUseCase) Unlock(ctx context.Context, clientID uuid.UUID) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockClientUseCase) RotateSecret(
	ctx context.Context,
	clientID uuid.UUID,
) (*authDomain.CreateClientOutput, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.CreateClientOutput), args.Error(1)
}

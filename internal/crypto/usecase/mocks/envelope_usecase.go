package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// MockEnvelopeUseCase is a mock implementation of EnvelopeUseCase for testing.
type MockEnvelopeUseCase struct {
	mock.Mock
}

// NewMockEnvelopeUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockEnvelopeUseCase(t *testing.T) *MockEnvelopeUseCase {
	m := &MockEnvelopeUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Wrap mocks the Wrap method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) Wrap(
	ctx context.Context,
	ownerID string,
	plaintext []byte,
) (*cryptoDomain.Envelope, error) {
	args := m.Called(ctx, ownerID, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.Envelope), args.Error(1)
}

// Unwrap mocks the Unwrap method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) Unwrap(ctx context.Context, envelope *cryptoDomain.Envelope) ([]byte, error) {
	args := m.Called(ctx, envelope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// RotateDek mocks the RotateDek method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) RotateDek(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.Dek), args.Error(1)
}

// RotateExpiredDeks mocks the RotateExpiredDeks method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) RotateExpiredDeks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// RewrapDeks mocks the RewrapDeks method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) RewrapDeks(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}

// Package mocks provides a testify mock of BusinessMetrics.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/secretbroker/internal/metrics"
)

// MockBusinessMetrics is a mock implementation of metrics.BusinessMetrics.
type MockBusinessMetrics struct {
	mock.Mock
}

var _ metrics.BusinessMetrics = (*MockBusinessMetrics)(nil)

// NewMockBusinessMetrics creates a MockBusinessMetrics whose expectations are asserted on cleanup.
func NewMockBusinessMetrics(t *testing.T) *MockBusinessMetrics {
	m := &MockBusinessMetrics{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *MockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *MockBusinessMetrics) RecordAccessDecision(ctx context.Context, action, decision string) {
	m.Called(ctx, action, decision)
}

// ExpectObserved expects one Observe call for the operation with status.
func (m *MockBusinessMetrics) ExpectObserved(domain, operation, status string) {
	m.On("RecordOperation", mock.Anything, domain, operation, status).Return().Once()
	m.On("RecordDuration", mock.Anything, domain, operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

// Package mocks provides testify mocks of the outbox use case interfaces.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/secretbroker/internal/outbox/domain"
)

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mock.Mock
}

// NewMockEventRepository creates a MockEventRepository whose expectations are asserted
// on cleanup.
func NewMockEventRepository(t *testing.T) *MockEventRepository {
	m := &MockEventRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEventRepository) Enqueue(ctx context.Context, event *domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*domain.Event)
	return events, args.Error(1)
}

func (m *MockEventRepository) SaveDeliveryState(ctx context.Context, event *domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventRepository) DeleteSettledBefore(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventProcessor is a mock implementation of EventProcessor.
type MockEventProcessor struct {
	mock.Mock
}

// NewMockEventProcessor creates a MockEventProcessor whose expectations are asserted on cleanup.
func NewMockEventProcessor(t *testing.T) *MockEventProcessor {
	m := &MockEventProcessor{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEventProcessor) Process(ctx context.Context, event *domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

// MockDispatcher is a mock implementation of Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

// NewMockDispatcher creates a MockDispatcher whose expectations are asserted on cleanup.
func NewMockDispatcher(t *testing.T) *MockDispatcher {
	m := &MockDispatcher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDispatcher) Run(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDispatcher) DispatchBatch(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockDispatcher) PurgeSettled(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	args := m.Called(ctx, olderThan, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

package mocks

import (
	"context"
	"slices"
	"sync"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// RecordingAuditLog is an in-memory AuditLogUseCase that keeps every recorded event.
type RecordingAuditLog struct {
	mu     sync.Mutex
	events []*authDomain.AuditEvent
}

// NewRecordingAuditLog creates an empty RecordingAuditLog.
func NewRecordingAuditLog() *RecordingAuditLog {
	return &RecordingAuditLog{}
}

// Record stores a copy of the event.
func (r *RecordingAuditLog) Record(_ context.Context, event *authDomain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.events = append(r.events, &copied)
}

// Run blocks until ctx is done.
func (r *RecordingAuditLog) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Dropped always returns zero.
func (r *RecordingAuditLog) Dropped() uint64 {
	return 0
}

// Events returns the recorded events in order.
func (r *RecordingAuditLog) Events() []*authDomain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// RecordingSink is an in-memory AuditSink. Err, when set, is returned from Write
// after the event has been stored.
type RecordingSink struct {
	mu     sync.Mutex
	events []*authDomain.AuditEvent
	Err    error
}

// Write stores the event.
func (s *RecordingSink) Write(_ context.Context, event *authDomain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.Err
}

// Events returns the written events in order.
func (s *RecordingSink) Events() []*authDomain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

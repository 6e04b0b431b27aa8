// Package domain models events parked in the outbox table until a collaborator
// acknowledges them. Audit events are the only producer today.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of an outbox event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	// StatusFailed marks an event that ran out of delivery attempts. It stays in the
	// table for inspection until purged.
	StatusFailed Status = "failed"
)

// Event is one outbox row. Payload is the JSON document handed to the collaborator.
type Event struct {
	ID          uuid.UUID
	Type        string
	Payload     string
	Status      Status
	Attempts    int
	LastError   *string
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewEvent creates a pending event of eventType created at now.
func NewEvent(eventType string, payload []byte, now time.Time) *Event {
	return &Event{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      eventType,
		Payload:   string(payload),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsSettled reports whether the event left the pending state.
func (e *Event) IsSettled() bool {
	return e.Status == StatusDelivered || e.Status == StatusFailed
}

// MarkDelivered records a successful delivery at the given time.
func (e *Event) MarkDelivered(at time.Time) {
	e.Status = StatusDelivered
	e.DeliveredAt = &at
	e.LastError = nil
}

// MarkAttemptFailed counts a failed delivery and keeps its error. Once attempts reach
// maxAttempts the event is parked as failed and true is returned.
func (e *Event) MarkAttemptFailed(err error, maxAttempts int) bool {
	e.Attempts++
	msg := err.Error()
	e.LastError = &msg
	if e.Attempts >= maxAttempts {
		e.Status = StatusFailed
		return true
	}
	return false
}

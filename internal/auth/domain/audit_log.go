package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent records one authorization decision. It never carries secret content.
type AuditEvent struct {
	ID          uuid.UUID      `json:"id"`
	RequestID   string         `json:"request_id,omitempty"`
	PrincipalID string         `json:"principal_id"`
	Action      Action         `json:"action"`
	OwnerID     string         `json:"owner_id"`
	Decision    Decision       `json:"decision"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	KekID       string         `json:"kek_id,omitempty"`
	Signature   []byte         `json:"signature,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsSigned reports whether the event carries a signature.
func (e *AuditEvent) IsSigned() bool {
	return len(e.Signature) > 0 && e.KekID != ""
}

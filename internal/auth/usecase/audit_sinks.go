package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	outboxDomain "github.com/allisson/secretbroker/internal/outbox/domain"
	outboxUseCase "github.com/allisson/secretbroker/internal/outbox/usecase"
)

// AuditEventType is the outbox event type of audit events.
const AuditEventType = "audit"

// outboxAuditSink persists audit events into the transactional outbox. The outbox
// worker then forwards them to the logging service.
type outboxAuditSink struct {
	outboxRepo outboxUseCase.EventRepository
}

// NewOutboxAuditSink creates an AuditSink writing to the outbox table.
func NewOutboxAuditSink(outboxRepo outboxUseCase.EventRepository) AuditSink {
	return &outboxAuditSink{outboxRepo: outboxRepo}
}

func (o *outboxAuditSink) Write(ctx context.Context, event *authDomain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit event")
	}

	return o.outboxRepo.Enqueue(ctx, outboxDomain.NewEvent(AuditEventType, payload, time.Now().UTC()))
}

// logAuditSink writes audit events as structured log lines on a dedicated logger.
type logAuditSink struct {
	logger *slog.Logger
}

// NewLogAuditSink creates an AuditSink backed by slog.
func NewLogAuditSink(logger *slog.Logger) AuditSink {
	return &logAuditSink{logger: logger.With(slog.String("log_type", AuditEventType))}
}

func (l *logAuditSink) Write(ctx context.Context, event *authDomain.AuditEvent) error {
	l.logger.InfoContext(ctx, "audit event",
		slog.String("event_id", event.ID.String()),
		slog.String("request_id", event.RequestID),
		slog.String("principal_id", event.PrincipalID),
		slog.String("action", string(event.Action)),
		slog.String("owner_id", event.OwnerID),
		slog.String("decision", string(event.Decision)),
		slog.String("kek_id", event.KekID),
		slog.Time("created_at", event.CreatedAt))
	return nil
}

package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// AuditOptions configures the audit dispatcher.
type AuditOptions struct {
	// BufferSize is the capacity of the in-memory queue.
	BufferSize int
	// FlushTimeout bounds delivery of queued events after Run is cancelled.
	FlushTimeout time.Duration
}

// auditLogUseCase implements AuditLogUseCase with a bounded queue drained by Run.
type auditLogUseCase struct {
	sink     AuditSink
	signer   authService.AuditSigner
	kekChain *cryptoDomain.KekChain
	events   chan *authDomain.AuditEvent
	dropped  atomic.Uint64
	opts     AuditOptions
	logger   *slog.Logger
}

// Record signs the event with a key derived from the active KEK and queues it.
// It never blocks: when the queue is full the event is dropped and counted.
func (a *auditLogUseCase) Record(ctx context.Context, event *authDomain.AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.Must(uuid.NewV7())
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	a.sign(ctx, event)

	select {
	case a.events <- event:
	default:
		a.dropped.Add(1)
		a.logger.WarnContext(ctx, "audit queue full, event dropped",
			slog.String("event_id", event.ID.String()),
			slog.String("principal_id", event.PrincipalID),
			slog.String("owner_id", event.OwnerID),
			slog.String("decision", string(event.Decision)))
	}
}

func (a *auditLogUseCase) sign(ctx context.Context, event *authDomain.AuditEvent) {
	if a.kekChain == nil || a.signer == nil {
		return
	}
	kek, ok := a.kekChain.Active()
	if !ok {
		return
	}
	signature, err := a.signer.Sign(kek.Key, event)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to sign audit event", slog.Any("error", err))
		return
	}
	event.KekID = kek.ID
	event.Signature = signature
}

// Run delivers events until ctx is done and then flushes the queue within FlushTimeout.
func (a *auditLogUseCase) Run(ctx context.Context) error {
	a.logger.Info("starting audit dispatcher", slog.Int("buffer_size", cap(a.events)))

	for {
		select {
		case <-ctx.Done():
			a.flush()
			return nil
		case event := <-a.events:
			a.deliver(ctx, event)
		}
	}
}

func (a *auditLogUseCase) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.FlushTimeout)
	defer cancel()

	for {
		select {
		case event := <-a.events:
			if ctx.Err() != nil {
				a.dropped.Add(1)
				continue
			}
			a.deliver(ctx, event)
		default:
			a.logger.Info("audit dispatcher stopped", slog.Uint64("dropped", a.dropped.Load()))
			return
		}
	}
}

func (a *auditLogUseCase) deliver(ctx context.Context, event *authDomain.AuditEvent) {
	if err := a.sink.Write(ctx, event); err != nil {
		a.logger.Error("failed to deliver audit event",
			slog.String("event_id", event.ID.String()),
			slog.String("principal_id", event.PrincipalID),
			slog.String("owner_id", event.OwnerID),
			slog.String("decision", string(event.Decision)),
			slog.Any("error", err))
	}
}

// Dropped returns how many events were lost to a full queue.
func (a *auditLogUseCase) Dropped() uint64 {
	return a.dropped.Load()
}

// NewAuditLogUseCase creates the audit dispatcher. kekChain may be nil, in which
// case events are delivered unsigned.
func NewAuditLogUseCase(
	sink AuditSink,
	signer authService.AuditSigner,
	kekChain *cryptoDomain.KekChain,
	opts AuditOptions,
	logger *slog.Logger,
) AuditLogUseCase {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &auditLogUseCase{
		sink:     sink,
		signer:   signer,
		kekChain: kekChain,
		events:   make(chan *authDomain.AuditEvent, opts.BufferSize),
		opts:     opts,
		logger:   logger,
	}
}

package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/metrics"
)

// envelopeUseCaseWithMetrics decorates EnvelopeUseCase with metrics instrumentation.
type envelopeUseCaseWithMetrics struct {
	next    EnvelopeUseCase
	metrics metrics.BusinessMetrics
}

// NewEnvelopeUseCaseWithMetrics wraps an EnvelopeUseCase with metrics recording.
func NewEnvelopeUseCaseWithMetrics(useCase EnvelopeUseCase, m metrics.BusinessMetrics) EnvelopeUseCase {
	return &envelopeUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Wrap records metrics for encryption operations.
func (e *envelopeUseCaseWithMetrics) Wrap(
	ctx context.Context,
	ownerID string,
	plaintext []byte,
) (*cryptoDomain.Envelope, error) {
	start := time.Now()
	envelope, err := e.next.Wrap(ctx, ownerID, plaintext)
	e.record(ctx, "envelope_wrap", start, err)
	return envelope, err
}

// Unwrap records metrics for decryption operations.
func (e *envelopeUseCaseWithMetrics) Unwrap(ctx context.Context, envelope *cryptoDomain.Envelope) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.Unwrap(ctx, envelope)
	e.record(ctx, "envelope_unwrap", start, err)
	return plaintext, err
}

// RotateDek records metrics for explicit DEK rotation.
func (e *envelopeUseCaseWithMetrics) RotateDek(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	start := time.Now()
	dek, err := e.next.RotateDek(ctx, ownerID)
	e.record(ctx, "dek_rotate", start, err)
	return dek, err
}

// RotateExpiredDeks records metrics for scheduled rotation sweeps.
func (e *envelopeUseCaseWithMetrics) RotateExpiredDeks(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := e.next.RotateExpiredDeks(ctx)
	e.record(ctx, "dek_rotate_expired", start, err)
	return count, err
}

// RewrapDeks records metrics for DEK re-wrapping batches.
func (e *envelopeUseCaseWithMetrics) RewrapDeks(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()
	count, err := e.next.RewrapDeks(ctx, batchSize)
	e.record(ctx, "dek_rewrap", start, err)
	return count, err
}

func (e *envelopeUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	metrics.Observe(ctx, e.metrics, "crypto", operation, start, metrics.Status(err))
}

package usecase

import (
	"context"
	"time"

	"github.com/allisson/secretbroker/internal/metrics"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Put records metrics for secret writes. Replays are counted separately.
func (s *secretUseCaseWithMetrics) Put(
	ctx context.Context,
	input *secretsDomain.PutInput,
) (*secretsDomain.PutOutput, error) {
	start := time.Now()
	output, err := s.next.Put(ctx, input)

	status := metrics.Status(err)
	if err == nil && output.Replayed {
		status = "replayed"
	}
	metrics.Observe(ctx, s.metrics, "secrets", "secret_put", start, status)

	return output, err
}

// Get records metrics for secret reads.
func (s *secretUseCaseWithMetrics) Get(
	ctx context.Context,
	ownerID, name string,
	version *uint,
) (*secretsDomain.SecretVersion, error) {
	start := time.Now()
	secretVersion, err := s.next.Get(ctx, ownerID, name, version)
	s.record(ctx, "secret_get", start, err)
	return secretVersion, err
}

// ListVersions records metrics for version listing.
func (s *secretUseCaseWithMetrics) ListVersions(
	ctx context.Context,
	ownerID, name string,
	offset, limit int,
) (*secretsDomain.Secret, []*secretsDomain.SecretVersion, error) {
	start := time.Now()
	head, versions, err := s.next.ListVersions(ctx, ownerID, name, offset, limit)
	s.record(ctx, "secret_list_versions", start, err)
	return head, versions, err
}

// Revoke records metrics for version revocation.
func (s *secretUseCaseWithMetrics) Revoke(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	start := time.Now()
	secretVersion, err := s.next.Revoke(ctx, ownerID, name, version)
	s.record(ctx, "secret_revoke", start, err)
	return secretVersion, err
}

// Promote records metrics for version promotion.
func (s *secretUseCaseWithMetrics) Promote(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	start := time.Now()
	secretVersion, err := s.next.Promote(ctx, ownerID, name, version)
	s.record(ctx, "secret_promote", start, err)
	return secretVersion, err
}

// PurgeIdempotencyKeys records metrics for idempotency record cleanup.
func (s *secretUseCaseWithMetrics) PurgeIdempotencyKeys(ctx context.Context, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := s.next.PurgeIdempotencyKeys(ctx, dryRun)
	s.record(ctx, "idempotency_purge", start, err)
	return count, err
}

func (s *secretUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	metrics.Observe(ctx, s.metrics, "secrets", operation, start, metrics.Status(err))
}

package usecase

import (
	"context"
	"errors"
	"time"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	"github.com/allisson/secretbroker/internal/metrics"
)

// tokenUseCaseWithMetrics decorates TokenUseCase with metrics instrumentation.
type tokenUseCaseWithMetrics struct {
	next    TokenUseCase
	metrics metrics.BusinessMetrics
}

// NewTokenUseCaseWithMetrics wraps a TokenUseCase with metrics recording.
func NewTokenUseCaseWithMetrics(useCase TokenUseCase, m metrics.BusinessMetrics) TokenUseCase {
	return &tokenUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Issue records metrics for token issuance.
func (t *tokenUseCaseWithMetrics) Issue(
	ctx context.Context,
	issueTokenInput *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	start := time.Now()
	output, err := t.next.Issue(ctx, issueTokenInput)

	status := metrics.Status(err)
	if errors.Is(err, authDomain.ErrClientLocked) {
		status = "locked"
	}
	metrics.Observe(ctx, t.metrics, "auth", "token_issue", start, status)

	return output, err
}

// Authenticate records metrics for token validation.
func (t *tokenUseCaseWithMetrics) Authenticate(
	ctx context.Context,
	plainToken string,
) (*authDomain.Principal, error) {
	start := time.Now()
	principal, err := t.next.Authenticate(ctx, plainToken)

	metrics.Observe(ctx, t.metrics, "auth", "token_authenticate", start, metrics.Status(err))

	return principal, err
}

// PurgeExpired records metrics for expired token cleanup.
func (t *tokenUseCaseWithMetrics) PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := t.next.PurgeExpired(ctx, olderThan, dryRun)

	metrics.Observe(ctx, t.metrics, "auth", "token_purge", start, metrics.Status(err))

	return count, err
}

// authorizerWithMetrics counts authorization decisions per action.
type authorizerWithMetrics struct {
	next    Authorizer
	metrics metrics.BusinessMetrics
}

// NewAuthorizerWithMetrics wraps an Authorizer with metrics recording.
func NewAuthorizerWithMetrics(authorizer Authorizer, m metrics.BusinessMetrics) Authorizer {
	return &authorizerWithMetrics{
		next:    authorizer,
		metrics: m,
	}
}

// Authorize records an "allow" or "deny" decision for the action.
func (a *authorizerWithMetrics) Authorize(
	ctx context.Context,
	principal *authDomain.Principal,
	action authDomain.Action,
	ownerID string,
) error {
	err := a.next.Authorize(ctx, principal, action, ownerID)

	decision := authDomain.DecisionAllow
	if err != nil {
		decision = authDomain.DecisionDeny
	}
	a.metrics.RecordAccessDecision(ctx, string(action), string(decision))

	return err
}

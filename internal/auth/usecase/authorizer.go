package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

// authorizer implements Authorizer over principal scopes.
type authorizer struct {
	auditLogUseCase AuditLogUseCase
	logger          *slog.Logger
}

// Authorize allows the call only if the principal holds secret:<action>:<owner_id> or
// the admin scope. Missing principals, owners or actions are denied. The decision is
// recorded in the audit log either way.
func (a *authorizer) Authorize(
	ctx context.Context,
	principal *authDomain.Principal,
	action authDomain.Action,
	ownerID string,
) error {
	decision := authDomain.DecisionDeny
	if principal.IsAllowed(action, ownerID) {
		decision = authDomain.DecisionAllow
	}

	principalID := ""
	if principal != nil {
		principalID = principal.ID
	}

	a.auditLogUseCase.Record(ctx, &authDomain.AuditEvent{
		ID:          uuid.Must(uuid.NewV7()),
		RequestID:   authDomain.RequestIDFromContext(ctx),
		PrincipalID: principalID,
		Action:      action,
		OwnerID:     ownerID,
		Decision:    decision,
		CreatedAt:   time.Now().UTC(),
	})

	if decision == authDomain.DecisionDeny {
		a.logger.Info("access denied",
			slog.String("principal_id", principalID),
			slog.String("action", string(action)),
			slog.String("owner_id", ownerID))
		return authDomain.ErrAccessDenied
	}
	return nil
}

// NewAuthorizer creates an Authorizer that audits through auditLogUseCase.
func NewAuthorizer(auditLogUseCase AuditLogUseCase, logger *slog.Logger) Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &authorizer{
		auditLogUseCase: auditLogUseCase,
		logger:          logger,
	}
}

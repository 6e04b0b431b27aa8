// Package usecase holds client management and token issuance.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	"github.com/allisson/secretbroker/internal/config"
)

// tokenUseCase implements TokenUseCase for locally registered clients.
type tokenUseCase struct {
	config        *config.Config
	clientRepo    ClientRepository
	tokenRepo     TokenRepository
	secretService authService.ClientSecretService
	tokenService  authService.TokenService
	logger        *slog.Logger
	now           func() time.Time
}

// Issue exchanges client credentials for a bearer token.
//
// Unknown clients and wrong secrets both yield ErrInvalidCredentials, with a decoy hash
// check so they also take the same time. Each wrong secret counts toward
// LockoutMaxAttempts; reaching it locks the client for LockoutDuration. A locked client
// gets ErrClientLocked whatever secret is presented, which tells the caller that the
// client id exists: the 423 client_locked response is part of the API.
func (t *tokenUseCase) Issue(
	ctx context.Context,
	input *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	client, err := t.activeClient(ctx, input.ClientID)
	if errors.Is(err, authDomain.ErrInvalidCredentials) {
		// Burn a hash verification so unknown ids are not told apart by latency.
		t.secretService.CompareSecret(input.ClientSecret, "")
	}
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	if client.IsLocked(now) {
		return nil, authDomain.ErrClientLocked
	}
	if !t.secretService.CompareSecret(input.ClientSecret, client.Secret) {
		return nil, t.recordFailure(ctx, client, now)
	}
	if client.FailedAttempts > 0 || client.LockedUntil != nil {
		if err := t.clientRepo.UpdateLockState(ctx, client.ID, 0, nil); err != nil {
			return nil, err
		}
	}
	return t.mint(ctx, client.ID, now)
}

// mint stores the hash of a new token for clientID and returns the plain value.
func (t *tokenUseCase) mint(ctx context.Context, clientID uuid.UUID, now time.Time) (*authDomain.IssueTokenOutput, error) {
	plain, hash, err := t.tokenService.GenerateToken()
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(t.config.AuthTokenExpiration)
	err = t.tokenRepo.Create(ctx, &authDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: hash,
		ClientID:  clientID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &authDomain.IssueTokenOutput{PlainToken: plain, ExpiresAt: expiresAt}, nil
}

// activeClient loads an active client. A missing client reads as invalid credentials.
func (t *tokenUseCase) activeClient(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	client, err := t.clientRepo.Get(ctx, clientID)
	switch {
	case errors.Is(err, authDomain.ErrClientNotFound):
		return nil, authDomain.ErrInvalidCredentials
	case err != nil:
		return nil, err
	case !client.IsActive:
		return nil, authDomain.ErrClientInactive
	}
	return client, nil
}

// recordFailure counts a wrong secret and locks the client once the limit is hit. The
// count comes back from the increment itself, so parallel guesses cannot all observe
// the same value and slip under the limit.
func (t *tokenUseCase) recordFailure(ctx context.Context, client *authDomain.Client, now time.Time) error {
	attempts, err := t.clientRepo.IncrementFailedAttempts(ctx, client.ID)
	if err != nil {
		return err
	}
	if t.config.LockoutMaxAttempts <= 0 || attempts < t.config.LockoutMaxAttempts {
		return authDomain.ErrInvalidCredentials
	}

	lockedUntil := now.Add(t.config.LockoutDuration)
	if err := t.clientRepo.UpdateLockState(ctx, client.ID, 0, &lockedUntil); err != nil {
		return err
	}
	t.logger.Warn("client locked after repeated failed authentication",
		slog.String("client_id", client.ID.String()),
		slog.Time("locked_until", lockedUntil))
	return authDomain.ErrClientLocked
}

// Authenticate resolves a plain bearer token to its client's principal. Unknown,
// expired and revoked tokens all yield ErrInvalidCredentials.
func (t *tokenUseCase) Authenticate(ctx context.Context, plainToken string) (*authDomain.Principal, error) {
	if plainToken == "" {
		return nil, authDomain.ErrInvalidCredentials
	}

	token, err := t.tokenRepo.GetByTokenHash(ctx, t.tokenService.HashToken(plainToken))
	if errors.Is(err, authDomain.ErrTokenNotFound) {
		return nil, authDomain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !token.IsValid(t.now().UTC()) {
		return nil, authDomain.ErrInvalidCredentials
	}

	client, err := t.activeClient(ctx, token.ClientID)
	if err != nil {
		return nil, err
	}
	return client.Principal(), nil
}

// PurgeExpired deletes tokens whose expiry is older than olderThan.
func (t *tokenUseCase) PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	return t.tokenRepo.DeleteExpired(ctx, t.now().UTC().Add(-olderThan), dryRun)
}

// NewTokenUseCase issues and verifies tokens for locally registered clients. A nil
// logger falls back to slog.Default.
func NewTokenUseCase(
	config *config.Config,
	clientRepo ClientRepository,
	tokenRepo TokenRepository,
	secretService authService.ClientSecretService,
	tokenService authService.TokenService,
	logger *slog.Logger,
) TokenUseCase {
	uc := &tokenUseCase{
		config:        config,
		clientRepo:    clientRepo,
		tokenRepo:     tokenRepo,
		secretService: secretService,
		tokenService:  tokenService,
		logger:        logger,
		now:           time.Now,
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	return uc
}

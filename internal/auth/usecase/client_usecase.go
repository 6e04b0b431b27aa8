package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	"github.com/allisson/secretbroker/internal/database"
)

type clientUseCase struct {
	txManager     database.TxManager
	clientRepo    ClientRepository
	tokenRepo     TokenRepository
	secretService authService.ClientSecretService
	now           func() time.Time
}

// NewClientUseCase manages the clients allowed to request broker tokens.
func NewClientUseCase(
	txManager database.TxManager,
	clientRepo ClientRepository,
	tokenRepo TokenRepository,
	secretService authService.ClientSecretService,
) ClientUseCase {
	return &clientUseCase{
		txManager:     txManager,
		clientRepo:    clientRepo,
		tokenRepo:     tokenRepo,
		secretService: secretService,
		now:           time.Now,
	}
}

// Create stores a client with a fresh secret. Scopes are validated first so a client
// can never hold a scope the authorizer would misread.
func (c *clientUseCase) Create(
	ctx context.Context,
	input *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	if err := authDomain.ValidateScopes(input.Scopes); err != nil {
		return nil, err
	}

	plainSecret, hashedSecret, err := c.secretService.GenerateSecret()
	if err != nil {
		return nil, err
	}

	client := &authDomain.Client{
		ID:        uuid.Must(uuid.NewV7()),
		Secret:    hashedSecret,
		Name:      input.Name,
		IsActive:  input.IsActive,
		Scopes:    input.Scopes,
		CreatedAt: c.now().UTC(),
	}
	if err := c.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}

	return &authDomain.CreateClientOutput{ID: client.ID, PlainSecret: plainSecret}, nil
}

// Update replaces name, active flag and scopes inside one transaction.
func (c *clientUseCase) Update(ctx context.Context, clientID uuid.UUID, input *authDomain.UpdateClientInput) error {
	if err := authDomain.ValidateScopes(input.Scopes); err != nil {
		return err
	}

	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		client, err := c.clientRepo.Get(ctx, clientID)
		if err != nil {
			return err
		}
		client.Name = input.Name
		client.IsActive = input.IsActive
		client.Scopes = input.Scopes
		return c.clientRepo.Update(ctx, client)
	})
}

func (c *clientUseCase) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	return c.clientRepo.Get(ctx, clientID)
}

// Unlock resets failed_attempts and locked_until.
func (c *clientUseCase) Unlock(ctx context.Context, clientID uuid.UUID) error {
	if _, err := c.clientRepo.Get(ctx, clientID); err != nil {
		return err
	}
	return c.clientRepo.UpdateLockState(ctx, clientID, 0, nil)
}

// RotateSecret swaps the client secret and revokes every token issued with the old one.
// Both writes share a transaction, so a failed revocation keeps the old secret.
func (c *clientUseCase) RotateSecret(ctx context.Context, clientID uuid.UUID) (*authDomain.CreateClientOutput, error) {
	plainSecret, hashedSecret, err := c.secretService.GenerateSecret()
	if err != nil {
		return nil, err
	}

	err = c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.clientRepo.Get(ctx, clientID); err != nil {
			return err
		}
		if err := c.clientRepo.UpdateSecret(ctx, clientID, hashedSecret); err != nil {
			return err
		}
		_, err := c.tokenRepo.RevokeByClientID(ctx, clientID, c.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	return &authDomain.CreateClientOutput{ID: clientID, PlainSecret: plainSecret}, nil
}

package app

import (
	"fmt"

	secretsHTTP "github.com/allisson/secretbroker/internal/secrets/http"
	secretsRepository "github.com/allisson/secretbroker/internal/secrets/repository"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
)

// SecretRepository returns the secret repository instance.
func (c *Container) SecretRepository() (secretsUseCase.SecretRepository, error) {
	return c.secretRepo.get(c.initSecretRepository)
}

// IdempotencyRepository returns the idempotency key repository instance.
func (c *Container) IdempotencyRepository() (secretsUseCase.IdempotencyRepository, error) {
	return c.idempotencyRepo.get(c.initIdempotencyRepository)
}

// SecretUseCase returns the secret store use case.
func (c *Container) SecretUseCase() (secretsUseCase.SecretUseCase, error) {
	return c.secretUseCase.get(c.initSecretUseCase)
}

// SecretHandler returns the secret HTTP handler.
func (c *Container) SecretHandler() (*secretsHTTP.SecretHandler, error) {
	return c.secretHandler.get(func() (*secretsHTTP.SecretHandler, error) {
		useCase, err := c.SecretUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get secret use case for secret handler: %w", err)
		}
		return secretsHTTP.NewSecretHandler(useCase, c.Logger()), nil
	})
}

// LegacyHandler returns the handler of the legacy API key and bot data routes.
func (c *Container) LegacyHandler() (*secretsHTTP.LegacyHandler, error) {
	return c.legacyHandler.get(func() (*secretsHTTP.LegacyHandler, error) {
		useCase, err := c.SecretUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get secret use case for legacy handler: %w", err)
		}
		return secretsHTTP.NewLegacyHandler(useCase, c.Logger()), nil
	})
}

func (c *Container) initSecretRepository() (secretsUseCase.SecretRepository, error) {
	db, mysql, err := c.repositoryDB("secret")
	if err != nil {
		return nil, err
	}
	if mysql {
		return secretsRepository.NewMySQLSecretRepository(db), nil
	}
	return secretsRepository.NewPostgreSQLSecretRepository(db), nil
}

func (c *Container) initIdempotencyRepository() (secretsUseCase.IdempotencyRepository, error) {
	db, mysql, err := c.repositoryDB("idempotency")
	if err != nil {
		return nil, err
	}
	if mysql {
		return secretsRepository.NewMySQLIdempotencyRepository(db), nil
	}
	return secretsRepository.NewPostgreSQLIdempotencyRepository(db), nil
}

func (c *Container) initSecretUseCase() (secretsUseCase.SecretUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret use case: %w", err)
	}
	secretRepo, err := c.SecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for secret use case: %w", err)
	}
	idempotencyRepo, err := c.IdempotencyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency repository for secret use case: %w", err)
	}
	envelopeUseCase, err := c.EnvelopeUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope use case for secret use case: %w", err)
	}
	fingerprinter, err := c.Fingerprinter()
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprinter for secret use case: %w", err)
	}

	baseUseCase := secretsUseCase.NewSecretUseCase(
		txManager,
		secretRepo,
		idempotencyRepo,
		envelopeUseCase,
		fingerprinter,
		c.RuntimeConfig(),
		c.Logger(),
	)
	return withMetrics(c, baseUseCase, secretsUseCase.NewSecretUseCaseWithMetrics)
}

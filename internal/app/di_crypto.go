package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/secretbroker/internal/crypto/http"
	cryptoRepository "github.com/allisson/secretbroker/internal/crypto/repository"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
	cryptoUseCase "github.com/allisson/secretbroker/internal/crypto/usecase"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	service, _ := c.kmsService.get(func() (cryptoService.KMSService, error) {
		return cryptoService.NewKMSService(), nil
	})
	return service
}

// KekChain returns the key encryption keys loaded from KEKS, decrypted through the
// KMS when KMS_KEY_URI is set.
func (c *Container) KekChain() (*cryptoDomain.KekChain, error) {
	return c.kekChain.get(c.initKekChain)
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	manager, _ := c.aeadManager.get(func() (cryptoService.AEADManager, error) {
		return cryptoService.NewAEADManager(), nil
	})
	return manager
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() cryptoService.KeyManager {
	manager, _ := c.keyManager.get(func() (cryptoService.KeyManager, error) {
		return cryptoService.NewKeyManager(c.AEADManager()), nil
	})
	return manager
}

// NonceGuard returns the process-wide nonce reuse detector.
func (c *Container) NonceGuard() cryptoService.NonceGuard {
	guard, _ := c.nonceGuard.get(func() (cryptoService.NonceGuard, error) {
		return cryptoService.NewNonceGuardWithLimits(
			cryptoService.DefaultNonceGuardCapacity,
			cryptoService.DefaultNonceGuardTotal,
		), nil
	})
	return guard
}

// Fingerprinter returns the plaintext fingerprinter used for idempotent writes.
func (c *Container) Fingerprinter() (secretsUseCase.Fingerprinter, error) {
	return c.fingerprinter.get(func() (secretsUseCase.Fingerprinter, error) {
		kekChain, err := c.KekChain()
		if err != nil {
			return nil, fmt.Errorf("failed to get kek chain for fingerprinter: %w", err)
		}
		return cryptoService.NewFingerprinter(kekChain), nil
	})
}

// DekRepository returns the DEK repository.
func (c *Container) DekRepository() (cryptoUseCase.DekRepository, error) {
	return c.dekRepo.get(c.initDekRepository)
}

// EnvelopeUseCase returns the envelope encryption engine.
func (c *Container) EnvelopeUseCase() (cryptoUseCase.EnvelopeUseCase, error) {
	return c.envelopeUseCase.get(c.initEnvelopeUseCase)
}

// RotationScheduler returns the DEK rotation scheduler, or nil when rotation is disabled.
func (c *Container) RotationScheduler() (*cryptoUseCase.RotationScheduler, error) {
	return c.rotationScheduler.get(func() (*cryptoUseCase.RotationScheduler, error) {
		if !c.config.DEKRotationEnabled {
			return nil, nil
		}
		envelopeUseCase, err := c.EnvelopeUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get envelope use case for rotation scheduler: %w", err)
		}
		return cryptoUseCase.NewRotationScheduler(envelopeUseCase, c.config.DEKRotationSchedule, c.Logger())
	})
}

// DekHandler returns the DEK HTTP handler.
func (c *Container) DekHandler() (*cryptoHTTP.DekHandler, error) {
	return c.dekHandler.get(func() (*cryptoHTTP.DekHandler, error) {
		envelopeUseCase, err := c.EnvelopeUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get envelope use case for dek handler: %w", err)
		}
		return cryptoHTTP.NewDekHandler(envelopeUseCase, c.Logger()), nil
	})
}

func (c *Container) initKekChain() (*cryptoDomain.KekChain, error) {
	kekChain, err := cryptoService.LoadKekChain(context.Background(), cryptoService.KekLoaderConfig{
		Raw:       c.config.KEKs,
		ActiveID:  c.config.ActiveKEKID,
		KMSKeyURI: c.config.KMSKeyURI,
		Timeout:   c.config.KMSTimeout,
	}, c.KMSService())
	if err != nil {
		return nil, fmt.Errorf("failed to load kek chain: %w", err)
	}

	c.Logger().Info("kek chain loaded",
		"active_kek_id", kekChain.ActiveKekID(),
		"kek_count", len(kekChain.IDs()),
		"kms_enabled", c.config.KMSKeyURI != "",
	)
	return kekChain, nil
}

func (c *Container) initDekRepository() (cryptoUseCase.DekRepository, error) {
	db, mysql, err := c.repositoryDB("dek")
	if err != nil {
		return nil, err
	}
	if mysql {
		return cryptoRepository.NewMySQLDekRepository(db), nil
	}
	return cryptoRepository.NewPostgreSQLDekRepository(db), nil
}

func (c *Container) initEnvelopeUseCase() (cryptoUseCase.EnvelopeUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for envelope use case: %w", err)
	}
	dekRepo, err := c.DekRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek repository for envelope use case: %w", err)
	}
	kekChain, err := c.KekChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek chain for envelope use case: %w", err)
	}
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.DEKAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid DEK_ALGORITHM: %w", err)
	}

	baseUseCase := cryptoUseCase.NewEnvelopeUseCase(
		txManager,
		dekRepo,
		c.KeyManager(),
		c.AEADManager(),
		c.NonceGuard(),
		kekChain,
		c.RuntimeConfig(),
		cryptoUseCase.EnvelopeOptions{
			Algorithm:           algorithm,
			RotationConcurrency: c.config.DEKRotationConcurrency,
		},
		c.Logger(),
	)
	return withMetrics(c, baseUseCase, cryptoUseCase.NewEnvelopeUseCaseWithMetrics)
}

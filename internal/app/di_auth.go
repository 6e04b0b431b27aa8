package app

import (
	"fmt"
	"time"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authHTTP "github.com/allisson/secretbroker/internal/auth/http"
	authRepository "github.com/allisson/secretbroker/internal/auth/repository"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
)

const (
	authProviderRemote = "remote"
	auditSinkLog       = "log"

	auditFlushTimeout = 5 * time.Second
)

// ClientSecretService returns the client secret hashing service.
func (c *Container) ClientSecretService() (authService.ClientSecretService, error) {
	return c.clientSecretService.get(func() (authService.ClientSecretService, error) {
		return authService.NewClientSecretService(c.config.ClientSecretHashPolicy)
	})
}

// TokenService returns the token generation and hashing service.
func (c *Container) TokenService() authService.TokenService {
	service, _ := c.tokenService.get(func() (authService.TokenService, error) {
		return authService.NewTokenService(), nil
	})
	return service
}

// AuditSigner returns the audit event signer.
func (c *Container) AuditSigner() authService.AuditSigner {
	signer, _ := c.auditSigner.get(func() (authService.AuditSigner, error) {
		return authService.NewAuditSigner(), nil
	})
	return signer
}

// ClientRepository returns the client repository instance.
func (c *Container) ClientRepository() (authUseCase.ClientRepository, error) {
	return c.clientRepo.get(c.initClientRepository)
}

// TokenRepository returns the token repository instance.
func (c *Container) TokenRepository() (authUseCase.TokenRepository, error) {
	return c.tokenRepo.get(c.initTokenRepository)
}

// ClientUseCase returns the client management use case.
func (c *Container) ClientUseCase() (authUseCase.ClientUseCase, error) {
	return c.clientUseCase.get(c.initClientUseCase)
}

// TokenUseCase returns the local token use case.
func (c *Container) TokenUseCase() (authUseCase.TokenUseCase, error) {
	return c.tokenUseCase.get(c.initTokenUseCase)
}

// Authenticator returns the authenticator selected by AUTH_PROVIDER.
func (c *Container) Authenticator() (authUseCase.Authenticator, error) {
	return c.authenticator.get(c.initAuthenticator)
}

// AuditSink returns the audit sink selected by AUDIT_SINK.
func (c *Container) AuditSink() (authUseCase.AuditSink, error) {
	return c.auditSink.get(c.initAuditSink)
}

// AuditLogUseCase returns the asynchronous audit dispatcher.
func (c *Container) AuditLogUseCase() (authUseCase.AuditLogUseCase, error) {
	return c.auditLogUseCase.get(c.initAuditLogUseCase)
}

// Authorizer returns the scope based authorizer.
func (c *Container) Authorizer() (authUseCase.Authorizer, error) {
	return c.authorizer.get(c.initAuthorizer)
}

// TokenHandler returns the token HTTP handler.
func (c *Container) TokenHandler() (*authHTTP.TokenHandler, error) {
	return c.tokenHandler.get(c.initTokenHandler)
}

// RateLimiter returns the per-principal limiter, or nil when disabled.
func (c *Container) RateLimiter() *authHTTP.RateLimiter {
	limiter, _ := c.rateLimiter.get(func() (*authHTTP.RateLimiter, error) {
		if !c.config.RateLimitEnabled {
			return nil, nil
		}
		return authHTTP.NewRateLimiter(c.config.RateLimitRequestsPerSec, c.config.RateLimitBurst), nil
	})
	return limiter
}

// TokenRateLimiter returns the per-IP limiter of the token endpoints, or nil when disabled.
func (c *Container) TokenRateLimiter() *authHTTP.RateLimiter {
	limiter, _ := c.tokenRateLimiter.get(func() (*authHTTP.RateLimiter, error) {
		if !c.config.RateLimitTokenEnabled {
			return nil, nil
		}
		return authHTTP.NewRateLimiter(c.config.RateLimitTokenRequestsPerSec, c.config.RateLimitTokenBurst), nil
	})
	return limiter
}

func (c *Container) localAuth() bool {
	return c.config.AuthProvider != authProviderRemote
}

func (c *Container) initClientRepository() (authUseCase.ClientRepository, error) {
	db, mysql, err := c.repositoryDB("client")
	if err != nil {
		return nil, err
	}
	if mysql {
		return authRepository.NewMySQLClientRepository(db), nil
	}
	return authRepository.NewPostgreSQLClientRepository(db), nil
}

func (c *Container) initTokenRepository() (authUseCase.TokenRepository, error) {
	db, mysql, err := c.repositoryDB("token")
	if err != nil {
		return nil, err
	}
	if mysql {
		return authRepository.NewMySQLTokenRepository(db), nil
	}
	return authRepository.NewPostgreSQLTokenRepository(db), nil
}

func (c *Container) initClientUseCase() (authUseCase.ClientUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for client use case: %w", err)
	}
	clientRepo, err := c.ClientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get client repository for client use case: %w", err)
	}
	tokenRepo, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for client use case: %w", err)
	}
	secretService, err := c.ClientSecretService()
	if err != nil {
		return nil, fmt.Errorf("failed to get client secret service for client use case: %w", err)
	}
	return authUseCase.NewClientUseCase(txManager, clientRepo, tokenRepo, secretService), nil
}

func (c *Container) initTokenUseCase() (authUseCase.TokenUseCase, error) {
	clientRepo, err := c.ClientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get client repository for token use case: %w", err)
	}
	tokenRepo, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for token use case: %w", err)
	}
	secretService, err := c.ClientSecretService()
	if err != nil {
		return nil, fmt.Errorf("failed to get client secret service for token use case: %w", err)
	}

	baseUseCase := authUseCase.NewTokenUseCase(
		c.config,
		clientRepo,
		tokenRepo,
		secretService,
		c.TokenService(),
		c.Logger(),
	)
	return withMetrics(c, baseUseCase, authUseCase.NewTokenUseCaseWithMetrics)
}

func (c *Container) initAuthenticator() (authUseCase.Authenticator, error) {
	if c.localAuth() {
		return c.TokenUseCase()
	}
	if c.config.AuthServiceURL == "" {
		return nil, fmt.Errorf("AUTH_SERVICE_URL is required when AUTH_PROVIDER is %q", authProviderRemote)
	}

	cache := authService.NewTTLCache[*authDomain.Principal](c.config.AuthCacheSize, c.config.AuthCacheTTL)
	return authService.NewRemoteAuthenticator(
		c.HTTPClient(),
		c.config.AuthServiceURL,
		c.TokenService(),
		cache,
		c.Logger(),
	), nil
}

func (c *Container) initAuditSink() (authUseCase.AuditSink, error) {
	if c.config.AuditSink == auditSinkLog {
		return authUseCase.NewLogAuditSink(c.Logger()), nil
	}
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for audit sink: %w", err)
	}
	return authUseCase.NewOutboxAuditSink(outboxRepo), nil
}

func (c *Container) initAuditLogUseCase() (authUseCase.AuditLogUseCase, error) {
	sink, err := c.AuditSink()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit sink for audit log use case: %w", err)
	}
	kekChain, err := c.KekChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek chain for audit log use case: %w", err)
	}

	return authUseCase.NewAuditLogUseCase(
		sink,
		c.AuditSigner(),
		kekChain,
		authUseCase.AuditOptions{
			BufferSize:   c.config.AuditBufferSize,
			FlushTimeout: auditFlushTimeout,
		},
		c.Logger(),
	), nil
}

func (c *Container) initAuthorizer() (authUseCase.Authorizer, error) {
	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for authorizer: %w", err)
	}

	baseAuthorizer := authUseCase.NewAuthorizer(auditLogUseCase, c.Logger())
	return withMetrics(c, baseAuthorizer, authUseCase.NewAuthorizerWithMetrics)
}

func (c *Container) initTokenHandler() (*authHTTP.TokenHandler, error) {
	authenticator, err := c.Authenticator()
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticator for token handler: %w", err)
	}

	var tokenUseCase authUseCase.TokenUseCase
	if c.localAuth() {
		tokenUseCase, err = c.TokenUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get token use case for token handler: %w", err)
		}
	}
	return authHTTP.NewTokenHandler(tokenUseCase, authenticator, c.Logger()), nil
}

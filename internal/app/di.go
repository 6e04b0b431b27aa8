// Package app wires the broker components together behind a lazily built Container.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	authHTTP "github.com/allisson/secretbroker/internal/auth/http"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
	"github.com/allisson/secretbroker/internal/config"
	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/secretbroker/internal/crypto/http"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
	cryptoUseCase "github.com/allisson/secretbroker/internal/crypto/usecase"
	"github.com/allisson/secretbroker/internal/database"
	"github.com/allisson/secretbroker/internal/http"
	"github.com/allisson/secretbroker/internal/httpclient"
	"github.com/allisson/secretbroker/internal/metrics"
	outboxUseCase "github.com/allisson/secretbroker/internal/outbox/usecase"
	secretsHTTP "github.com/allisson/secretbroker/internal/secrets/http"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
)

// settingsBootstrapTimeout bounds the first read of the runtime settings.
const settingsBootstrapTimeout = 10 * time.Second

// lazy memoizes a component constructor. The constructor runs once; its value and
// error are returned to every caller.
type lazy[T any] struct {
	once   sync.Once
	loaded atomic.Bool
	value  T
	err    error
}

func (l *lazy[T]) get(init func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.value, l.err = init()
		l.loaded.Store(l.err == nil)
	})
	return l.value, l.err
}

// peek returns the value only when it was built successfully.
func (l *lazy[T]) peek() (T, bool) {
	if !l.loaded.Load() {
		var zero T
		return zero, false
	}
	return l.value, true
}

// Container builds each component on first access and hands the same instance to
// every later caller. Safe for concurrent use.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          lazy[*slog.Logger]
	db              lazy[*sql.DB]
	txManager       lazy[database.TxManager]
	runtimeConfig   lazy[*config.RuntimeConfig]
	httpClient      lazy[*retryablehttp.Client]
	metricsProvider lazy[*metrics.Provider]
	businessMetrics lazy[metrics.BusinessMetrics]

	// Crypto
	kmsService        lazy[cryptoService.KMSService]
	kekChain          lazy[*cryptoDomain.KekChain]
	aeadManager       lazy[cryptoService.AEADManager]
	keyManager        lazy[cryptoService.KeyManager]
	nonceGuard        lazy[cryptoService.NonceGuard]
	fingerprinter     lazy[secretsUseCase.Fingerprinter]
	dekRepo           lazy[cryptoUseCase.DekRepository]
	envelopeUseCase   lazy[cryptoUseCase.EnvelopeUseCase]
	rotationScheduler lazy[*cryptoUseCase.RotationScheduler]
	dekHandler        lazy[*cryptoHTTP.DekHandler]

	// Secrets
	secretRepo      lazy[secretsUseCase.SecretRepository]
	idempotencyRepo lazy[secretsUseCase.IdempotencyRepository]
	secretUseCase   lazy[secretsUseCase.SecretUseCase]
	secretHandler   lazy[*secretsHTTP.SecretHandler]
	legacyHandler   lazy[*secretsHTTP.LegacyHandler]

	// Auth
	clientSecretService lazy[authService.ClientSecretService]
	tokenService        lazy[authService.TokenService]
	auditSigner         lazy[authService.AuditSigner]
	clientRepo          lazy[authUseCase.ClientRepository]
	tokenRepo           lazy[authUseCase.TokenRepository]
	clientUseCase       lazy[authUseCase.ClientUseCase]
	tokenUseCase        lazy[authUseCase.TokenUseCase]
	authenticator       lazy[authUseCase.Authenticator]
	auditSink           lazy[authUseCase.AuditSink]
	auditLogUseCase     lazy[authUseCase.AuditLogUseCase]
	authorizer          lazy[authUseCase.Authorizer]
	tokenHandler        lazy[*authHTTP.TokenHandler]
	rateLimiter         lazy[*authHTTP.RateLimiter]
	tokenRateLimiter    lazy[*authHTTP.RateLimiter]

	// Outbox
	outboxRepo       lazy[outboxUseCase.EventRepository]
	outboxDispatcher lazy[outboxUseCase.Dispatcher]

	// Servers
	httpServer    lazy[*http.Server]
	metricsServer lazy[*http.MetricsServer]

	mu sync.Mutex
}

// NewContainer returns an empty container for cfg. Nothing is built until asked for.
func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the process logger, built from LOG_LEVEL and LOG_FORMAT.
func (c *Container) Logger() *slog.Logger {
	logger, _ := c.logger.get(func() (*slog.Logger, error) {
		return c.initLogger(), nil
	})
	return logger
}

// DB opens and pings the configured database once.
func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(c.initDB)
}

// TxManager returns the transaction manager over DB.
func (c *Container) TxManager() (database.TxManager, error) {
	return c.txManager.get(c.initTxManager)
}

// RuntimeConfig returns the hot-reloadable settings holder.
func (c *Container) RuntimeConfig() *config.RuntimeConfig {
	runtimeConfig, _ := c.runtimeConfig.get(func() (*config.RuntimeConfig, error) {
		logger := c.Logger()
		source := config.NewSettingsSource(c.config, logger)
		runtimeConfig := config.NewRuntimeConfig(c.config.Settings, source, c.config.ConfigRefreshInterval, logger)
		if c.config.ConfigServiceURL != "" {
			runtimeConfig.Bootstrap(context.Background(), settingsBootstrapTimeout)
		}
		return runtimeConfig, nil
	})
	return runtimeConfig
}

// HTTPClient returns the retrying client shared by outbound collaborators.
func (c *Container) HTTPClient() *retryablehttp.Client {
	client, _ := c.httpClient.get(func() (*retryablehttp.Client, error) {
		return httpclient.New(httpclient.Options{
			Timeout:  c.config.HTTPClientTimeout,
			RetryMax: c.config.HTTPClientRetryMax,
			Logger:   c.Logger(),
		}), nil
	})
	return client
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return c.metricsProvider.get(func() (*metrics.Provider, error) {
		if !c.config.MetricsEnabled {
			return nil, nil
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		return provider, nil
	})
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics
// are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return c.businessMetrics.get(func() (metrics.BusinessMetrics, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return metrics.NewNoOpBusinessMetrics(), nil
		}
		businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
		return businessMetrics, nil
	})
}

// repositoryDB returns the database handle for the named repository and whether it
// speaks the MySQL dialect.
func (c *Container) repositoryDB(name string) (*sql.DB, bool, error) {
	switch c.config.DBDriver {
	case "mysql", "postgres":
	default:
		return nil, false, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
	db, err := c.DB()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get database for %s repository: %w", name, err)
	}
	return db, c.config.DBDriver == "mysql", nil
}

// withMetrics decorates base with wrap when metrics are enabled.
func withMetrics[T any](c *Container, base T, wrap func(T, metrics.BusinessMetrics) T) (T, error) {
	if !c.config.MetricsEnabled {
		return base, nil
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get business metrics: %w", err)
	}
	return wrap(base, businessMetrics), nil
}

// HTTPServer returns the broker API server.
func (c *Container) HTTPServer() (*http.Server, error) {
	return c.httpServer.get(c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return c.metricsServer.get(func() (*http.MetricsServer, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return nil, nil
		}
		return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
	})
}

// Shutdown stops servers and schedulers and releases what was built, in dependency
// order. Components never built are skipped.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if server, ok := c.httpServer.peek(); ok {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if server, ok := c.metricsServer.peek(); ok && server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if scheduler, ok := c.rotationScheduler.peek(); ok && scheduler != nil {
		scheduler.Stop()
	}
	if provider, ok := c.metricsProvider.peek(); ok && provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	if db, ok := c.db.peek(); ok {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if kekChain, ok := c.kekChain.peek(); ok {
		kekChain.Close()
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		ConnectAttempts:    c.config.DBConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initHTTPServer creates the HTTP server and wires every route.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	authenticator, err := c.Authenticator()
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticator for http server: %w", err)
	}
	authorizer, err := c.Authorizer()
	if err != nil {
		return nil, fmt.Errorf("failed to get authorizer for http server: %w", err)
	}
	tokenHandler, err := c.TokenHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get token handler for http server: %w", err)
	}
	secretHandler, err := c.SecretHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret handler for http server: %w", err)
	}
	legacyHandler, err := c.LegacyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get legacy handler for http server: %w", err)
	}
	dekHandler, err := c.DekHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek handler for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	deps := http.RouterDependencies{
		Authenticator:    authenticator,
		Authorizer:       authorizer,
		TokenHandler:     tokenHandler,
		LocalTokens:      c.localAuth(),
		SecretHandler:    secretHandler,
		LegacyHandler:    legacyHandler,
		DekHandler:       dekHandler,
		RateLimiter:      c.RateLimiter(),
		TokenRateLimiter: c.TokenRateLimiter(),
	}
	if provider != nil {
		deps.MeterProvider = provider.MeterProvider()
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, deps)
	return server, nil
}

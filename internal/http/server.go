// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authHTTP "github.com/allisson/secretbroker/internal/auth/http"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
	"github.com/allisson/secretbroker/internal/config"
	cryptoHTTP "github.com/allisson/secretbroker/internal/crypto/http"
	"github.com/allisson/secretbroker/internal/metrics"
	secretsHTTP "github.com/allisson/secretbroker/internal/secrets/http"
)

const readinessTimeout = 2 * time.Second

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// RouterDependencies holds the handlers and middleware collaborators the router wires.
type RouterDependencies struct {
	Authenticator authUseCase.Authenticator
	Authorizer    authUseCase.Authorizer

	// TokenHandler always serves token validation. Issuance and login are registered
	// only when LocalTokens is set.
	TokenHandler *authHTTP.TokenHandler
	LocalTokens  bool

	SecretHandler *secretsHTTP.SecretHandler
	LegacyHandler *secretsHTTP.LegacyHandler
	DekHandler    *cryptoHTTP.DekHandler

	// RateLimiter limits authenticated routes per principal; nil disables it.
	RateLimiter *authHTTP.RateLimiter
	// TokenRateLimiter limits the token endpoints per client IP; nil disables it.
	TokenRateLimiter *authHTTP.RateLimiter

	// MeterProvider records HTTP metrics when set.
	MeterProvider metric.MeterProvider
}

// NewServer creates a new HTTP server. SetupRouter must be called before Start.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: newHTTPServer(host, port),
	}
}

// SetupRouter builds the gin engine with every route of the broker.
func (s *Server) SetupRouter(cfg *config.Config, deps RouterDependencies) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if deps.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(deps.MeterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	tokenLimit := s.tokenRateLimit(deps.TokenRateLimiter)
	authenticated := []gin.HandlerFunc{authHTTP.AuthenticationMiddleware(deps.Authenticator, s.logger)}
	if deps.RateLimiter != nil {
		authenticated = append(authenticated, authHTTP.RateLimitMiddleware(deps.RateLimiter, s.logger))
	}
	authorize := func(action authDomain.Action, owner authHTTP.OwnerResolver) gin.HandlerFunc {
		return authHTTP.AuthorizationMiddleware(deps.Authorizer, action, owner, s.logger)
	}
	ownerParam := authHTTP.OwnerFromParam("owner_id")

	v1 := router.Group("/v1")
	{
		if deps.LocalTokens {
			v1.POST("/token", tokenLimit, deps.TokenHandler.IssueTokenHandler)
		}

		protected := v1.Group("", authenticated...)

		secrets := protected.Group("/secrets/:owner_id/:name")
		{
			secrets.POST("", authorize(authDomain.ActionWrite, ownerParam), deps.SecretHandler.PutHandler)
			secrets.GET("", authorize(authDomain.ActionRead, ownerParam), deps.SecretHandler.GetHandler)
			secrets.GET("/versions", authorize(authDomain.ActionRead, ownerParam), deps.SecretHandler.ListVersionsHandler)
			secrets.POST(
				"/revoke/:version",
				authorize(authDomain.ActionRevoke, ownerParam),
				deps.SecretHandler.RevokeHandler,
			)
			secrets.POST(
				"/promote/:version",
				authorize(authDomain.ActionWrite, ownerParam),
				deps.SecretHandler.PromoteHandler,
			)
		}

		protected.POST(
			"/owners/:owner_id/dek/rotate",
			authorize(authDomain.ActionRotate, ownerParam),
			deps.DekHandler.RotateHandler,
		)
	}

	legacy := router.Group("/api/v1")
	{
		if deps.LocalTokens {
			legacy.POST("/auth/login", tokenLimit, deps.TokenHandler.LoginHandler)
		}
		legacy.GET("/auth/validate", tokenLimit, deps.TokenHandler.ValidateTokenHandler)

		protected := legacy.Group("", authenticated...)
		ownerQuery := authHTTP.OwnerFromQuery("owner_id")
		botQuery := authHTTP.OwnerFromQuery("bot_id")

		protected.POST("/apikeys/store", authorize(authDomain.ActionWrite, ownerQuery), deps.LegacyHandler.StoreAPIKeyHandler)
		protected.GET("/apikeys/retrieve", authorize(authDomain.ActionRead, ownerQuery), deps.LegacyHandler.RetrieveAPIKeyHandler)
		protected.POST("/botdata/store", authorize(authDomain.ActionWrite, botQuery), deps.LegacyHandler.StoreBotDataHandler)
		protected.GET("/botdata/retrieve", authorize(authDomain.ActionRead, botQuery), deps.LegacyHandler.RetrieveBotDataHandler)
	}

	s.router = router
}

func (s *Server) tokenRateLimit(limiter *authHTTP.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return authHTTP.IPRateLimitMiddleware(limiter, s.logger)
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured")
	}
	s.server.Handler = s.router
	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.db == nil {
		s.notReady(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		s.notReady(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}

func (s *Server) notReady(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":     "not_ready",
		"components": gin.H{"database": "error"},
	})
}

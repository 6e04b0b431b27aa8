package http

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	"github.com/allisson/secretbroker/internal/httputil"
)

const bearerPrefix = "bearer "

// OwnerResolver extracts the owner id a request targets.
type OwnerResolver func(c *gin.Context) string

// OwnerFromParam resolves the owner from a path parameter.
func OwnerFromParam(name string) OwnerResolver {
	return func(c *gin.Context) string { return c.Param(name) }
}

// OwnerFromQuery resolves the owner from a query parameter.
func OwnerFromQuery(name string) OwnerResolver {
	return func(c *gin.Context) string { return c.Query(name) }
}

// AuthenticationMiddleware resolves "Authorization: Bearer <token>" to a principal and
// stores it in the request context. The gin request id is also copied into the context
// so audit events can be correlated with access logs.
//
// Missing, malformed or rejected tokens answer 401. An unreachable authentication
// service answers 503; no request proceeds without a principal.
func AuthenticationMiddleware(authenticator authUseCase.Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := authDomain.WithRequestID(c.Request.Context(), requestid.Get(c))
		c.Request = c.Request.WithContext(ctx)

		plainToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		principal, err := authenticator.Authenticate(ctx, plainToken)
		if err != nil {
			logger.Debug("authentication failed", slog.Any("error", err))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(ctx, principal))
		c.Next()
	}
}

// AuthorizationMiddleware requires the authenticated principal to hold action on the
// owner returned by owner. It must run after AuthenticationMiddleware.
func AuthorizationMiddleware(
	authorizer authUseCase.Authorizer,
	action authDomain.Action,
	owner OwnerResolver,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Error("authorization failed: no authenticated principal in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if err := authorizer.Authorize(c.Request.Context(), principal, action, owner(c)); err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

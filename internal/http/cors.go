package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsPreflightMaxAge is how long browsers may cache a preflight answer.
const corsPreflightMaxAge = 12 * time.Hour

// createCORSMiddleware returns nil unless CORS is enabled with at least one explicit
// origin. The broker is a server-to-server API, so CORS is off by default.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr, logger)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no usable origins configured, CORS will not be applied")
		return nil
	}
	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           corsPreflightMaxAge,
	})
}

// parseOrigins splits a comma-separated origin list. A wildcard origin is dropped
// because responses carry credentials.
func parseOrigins(originsStr string, logger *slog.Logger) []string {
	var origins []string
	for _, part := range strings.Split(originsStr, ",") {
		origin := strings.TrimSpace(part)
		switch origin {
		case "":
			continue
		case "*":
			logger.Warn("ignoring wildcard CORS origin, list origins explicitly")
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

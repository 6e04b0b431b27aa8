package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/secretbroker/internal/errors"
	"github.com/allisson/secretbroker/internal/httputil"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = time.Hour
)

// RateLimiter holds one token bucket per key. Buckets idle for an hour are dropped
// by Run.
type RateLimiter struct {
	limiters sync.Map // map[string]*limiterEntry
	rps      float64
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// NewRateLimiter creates a RateLimiter allowing rps requests per second per key with
// the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rps, burst: burst, now: time.Now}
}

// Allow consumes one token from the bucket of key. When the bucket is empty it
// returns false with the delay until the next token.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	limiter := r.get(key)
	if limiter.Allow() {
		return true, 0
	}
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	now := r.now()
	if val, ok := r.limiters.Load(key); ok {
		entry := val.(*limiterEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &limiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(r.rps), r.burst),
		lastAccess: now,
	}
	actual, _ := r.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

// Run drops idle buckets every five minutes until ctx is cancelled.
func (r *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *RateLimiter) cleanup() {
	threshold := r.now().Add(-limiterIdleTimeout)
	r.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()
		if stale {
			r.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware limits authenticated requests per principal. It must run after
// AuthenticationMiddleware.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Error("rate limit middleware: no authenticated principal in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if allowed, delay := limiter.Allow("principal:" + principal.ID); !allowed {
			logger.Debug("rate limit exceeded",
				slog.String("principal_id", principal.ID),
				slog.Duration("retry_after", delay))
			abortRateLimited(c, delay, "Too many requests. Please retry after the specified delay.")
			return
		}
		c.Next()
	}
}

// IPRateLimitMiddleware limits unauthenticated token endpoints per client IP.
func IPRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if allowed, delay := limiter.Allow("ip:" + clientIP); !allowed {
			logger.Debug("token rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Duration("retry_after", delay))
			abortRateLimited(c, delay, "Too many token requests from this IP. Please retry after the specified delay.")
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, delay time.Duration, message string) {
	retryAfter := int(delay.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":   "rate_limit_exceeded",
		"message": message,
	})
}

// Package httpclient builds the retrying HTTP client used to reach remote collaborators
// (authentication, configuration and logging services).
package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// Options configures a retrying client.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// New returns a retryablehttp client. Each attempt is bounded by Options.Timeout;
// the caller's context bounds the whole exchange including retries.
func New(opts Options) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	} else {
		client.RetryWaitMin = 100 * time.Millisecond
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	} else {
		client.RetryWaitMax = time.Second
	}
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil
	if opts.Logger != nil {
		client.Logger = redactingLogger{logger: opts.Logger.With(slog.String("component", "httpclient"))}
	}
	return client
}

// MapError converts transport failures, including exhausted retries and deadlines,
// into ErrUnavailable so callers surface a 503. The request URL is scrubbed first.
func MapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return apperrors.WrapCause(apperrors.ErrUnavailable, Scrub(err), message)
}

// IsServerError reports whether the status code should be treated as a collaborator outage.
func IsServerError(statusCode int) bool {
	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}

package httpclient

import (
	"errors"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/hashicorp/go-retryablehttp"
)

// queryPattern matches the query string of a URL embedded in free text. Collaborator
// URLs may carry credentials there, e.g. the token of /api/v1/auth/validate.
var queryPattern = regexp.MustCompile(`\?[^\s"'<>]*`)

const redactedQuery = "?redacted"

// RedactText replaces every URL query string in s.
func RedactText(s string) string {
	return queryPattern.ReplaceAllString(s, redactedQuery)
}

// scrubbedError carries a transport failure without the request URL. Unwrap skips the
// *url.Error so the URL cannot be recovered with errors.As.
type scrubbedError struct {
	msg   string
	cause error
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.cause }

// Scrub returns err with URL query strings removed from its message and its chain.
func Scrub(err error) error {
	if err == nil {
		return nil
	}
	msg := RedactText(err.Error())

	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr):
		return &scrubbedError{msg: msg, cause: urlErr.Err}
	case msg != err.Error():
		return &scrubbedError{msg: msg}
	}
	return &scrubbedError{msg: msg, cause: err}
}

// redactingLogger adapts slog to retryablehttp.LeveledLogger, scrubbing URLs and
// errors before they are written.
type redactingLogger struct {
	logger *slog.Logger
}

var _ retryablehttp.LeveledLogger = redactingLogger{}

func (l redactingLogger) Error(msg string, kv ...any) { l.logger.Error(msg, redactArgs(kv)...) }
func (l redactingLogger) Warn(msg string, kv ...any)  { l.logger.Warn(msg, redactArgs(kv)...) }
func (l redactingLogger) Info(msg string, kv ...any)  { l.logger.Info(msg, redactArgs(kv)...) }
func (l redactingLogger) Debug(msg string, kv ...any) { l.logger.Debug(msg, redactArgs(kv)...) }

func redactArgs(kv []any) []any {
	out := make([]any, len(kv))
	for i, v := range kv {
		switch value := v.(type) {
		case error:
			out[i] = Scrub(value).Error()
		case string:
			out[i] = RedactText(value)
		case *url.URL:
			if value != nil {
				out[i] = RedactText(value.String())
			}
		default:
			out[i] = v
		}
	}
	return out
}

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

func TestNew(t *testing.T) {
	t.Run("Success_RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := New(Options{
			Timeout:      time.Second,
			RetryMax:     3,
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: 5 * time.Millisecond,
		})

		req, err := retryablehttp.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Defaults", func(t *testing.T) {
		client := New(Options{Timeout: 2 * time.Second, RetryMax: 1})
		assert.Equal(t, 2*time.Second, client.HTTPClient.Timeout)
		assert.Equal(t, 100*time.Millisecond, client.RetryWaitMin)
		assert.Equal(t, time.Second, client.RetryWaitMax)
	})
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil, "call failed"))
	assert.ErrorIs(t, MapError(context.DeadlineExceeded, "call failed"), apperrors.ErrUnavailable)
	assert.ErrorIs(t, MapError(errors.New("giving up after 3 attempts"), "call failed"), apperrors.ErrUnavailable)
}

func TestIsServerError(t *testing.T) {
	assert.True(t, IsServerError(http.StatusServiceUnavailable))
	assert.True(t, IsServerError(http.StatusTooManyRequests))
	assert.False(t, IsServerError(http.StatusUnauthorized))
	assert.False(t, IsServerError(http.StatusOK))
}

func TestRedactText(t *testing.T) {
	assert.Equal(t,
		`Get "http://auth:8080/api/v1/auth/validate?redacted": dial tcp: connection refused`,
		RedactText(`Get "http://auth:8080/api/v1/auth/validate?token=sbt_abc": dial tcp: connection refused`))
	assert.Equal(t, "no query here", RedactText("no query here"))
}

func TestScrub(t *testing.T) {
	assert.NoError(t, Scrub(nil))

	urlErr := &url.Error{Op: "Get", URL: "http://auth/validate?token=sbt_abc", Err: context.DeadlineExceeded}
	err := Scrub(fmt.Errorf("GET http://auth/validate?token=sbt_abc giving up after 2 attempt(s): %w", urlErr))
	assert.NotContains(t, err.Error(), "sbt_abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var leaked *url.Error
	assert.False(t, errors.As(err, &leaked), "the url error is dropped from the chain")

	mapped := MapError(urlErr, "authentication service request failed")
	assert.ErrorIs(t, mapped, apperrors.ErrUnavailable)
	assert.NotContains(t, mapped.Error(), "sbt_abc")
}

func TestNew_LogsWithoutQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL + "/api/v1/auth/validate?token=sbt_abc"
	srv.Close()

	var logs bytes.Buffer
	client := New(Options{
		Timeout:      time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
		Logger:       slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	req, err := retryablehttp.NewRequestWithContext(context.Background(), http.MethodGet, endpoint, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)

	assert.Contains(t, logs.String(), "request failed")
	assert.NotContains(t, logs.String(), "sbt_abc")
}

package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	"github.com/allisson/secretbroker/internal/httpclient"
)

const (
	validatePath = "/api/v1/auth/validate"

	// maxValidateResponseSize bounds the body read from the authentication service.
	maxValidateResponseSize = 64 << 10
)

// ValidateTokenResponse is the body returned by GET /api/v1/auth/validate.
type ValidateTokenResponse struct {
	Status string   `json:"status"`
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}

// RemoteAuthenticator validates bearer tokens against an external authentication
// service. Valid principals are cached by token hash; rejections are never cached.
type RemoteAuthenticator struct {
	client       *retryablehttp.Client
	baseURL      string
	tokenService TokenService
	cache        *TTLCache[*authDomain.Principal]
	logger       *slog.Logger
}

// NewRemoteAuthenticator creates an authenticator calling baseURL + /api/v1/auth/validate.
func NewRemoteAuthenticator(
	client *retryablehttp.Client,
	baseURL string,
	tokenService TokenService,
	cache *TTLCache[*authDomain.Principal],
	logger *slog.Logger,
) *RemoteAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteAuthenticator{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenService: tokenService,
		cache:        cache,
		logger:       logger,
	}
}

// Authenticate resolves a bearer token to a principal. An unreachable or failing
// authentication service yields ErrUnavailable and never a principal.
func (r *RemoteAuthenticator) Authenticate(ctx context.Context, plainToken string) (*authDomain.Principal, error) {
	if plainToken == "" {
		return nil, authDomain.ErrInvalidCredentials
	}

	cacheKey := r.tokenService.HashToken(plainToken)
	if principal, ok := r.cache.Get(cacheKey); ok {
		return clonePrincipal(principal), nil
	}

	endpoint := r.baseURL + validatePath + "?" + url.Values{"token": {plainToken}}.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build validate request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, httpclient.MapError(err, "authentication service request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, authDomain.ErrInvalidCredentials
	case httpclient.IsServerError(resp.StatusCode):
		return nil, apperrors.Wrapf(apperrors.ErrUnavailable, "authentication service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		r.logger.Warn("unexpected authentication service status", slog.Int("status_code", resp.StatusCode))
		return nil, authDomain.ErrInvalidCredentials
	}

	var body ValidateTokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxValidateResponseSize)).Decode(&body); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "invalid authentication service response")
	}
	if body.Status != "valid" || body.UserID == "" {
		return nil, authDomain.ErrInvalidCredentials
	}

	principal := &authDomain.Principal{
		ID:     body.UserID,
		Scopes: body.Scopes,
		Source: authDomain.PrincipalSourceRemote,
	}
	r.cache.Set(cacheKey, principal)
	return clonePrincipal(principal), nil
}

func clonePrincipal(p *authDomain.Principal) *authDomain.Principal {
	scopes := make([]string, len(p.Scopes))
	copy(scopes, p.Scopes)
	return &authDomain.Principal{ID: p.ID, Scopes: scopes, Source: p.Source}
}

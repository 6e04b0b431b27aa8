package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	"github.com/allisson/secretbroker/internal/auth/http/dto"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	"github.com/allisson/secretbroker/internal/httputil"
	customValidation "github.com/allisson/secretbroker/internal/validation"
)

var errInvalidClientID = errors.New("client_id: must be a valid UUID")

// TokenHandler serves token issuance and validation.
type TokenHandler struct {
	tokenUseCase  authUseCase.TokenUseCase
	authenticator authUseCase.Authenticator
	logger        *slog.Logger
}

// NewTokenHandler creates a new token handler. tokenUseCase may be nil when tokens are
// validated by a remote service; only ValidateTokenHandler is usable then.
func NewTokenHandler(
	tokenUseCase authUseCase.TokenUseCase,
	authenticator authUseCase.Authenticator,
	logger *slog.Logger,
) *TokenHandler {
	return &TokenHandler{
		tokenUseCase:  tokenUseCase,
		authenticator: authenticator,
		logger:        logger,
	}
}

// IssueTokenHandler issues a new authentication token for a client.
// POST /v1/token - No authentication required (this is the authentication endpoint).
// Returns 201 Created with token and expiration time.
func (h *TokenHandler) IssueTokenHandler(c *gin.Context) {
	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, ok := h.issue(c, req.ClientID, req.ClientSecret)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, dto.IssueTokenResponse{
		Token:     output.PlainToken,
		ExpiresAt: output.ExpiresAt,
	})
}

// LoginHandler is the legacy credential exchange.
// POST /api/v1/auth/login with username (client id) and password (client secret) as
// form fields or query parameters. Returns 200 {token}.
func (h *TokenHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, ok := h.issue(c, req.Username, req.Password)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{Token: output.PlainToken})
}

func (h *TokenHandler) issue(c *gin.Context, rawClientID, secret string) (*authDomain.IssueTokenOutput, bool) {
	clientID, err := uuid.Parse(rawClientID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, errInvalidClientID, h.logger)
		return nil, false
	}

	output, err := h.tokenUseCase.Issue(c.Request.Context(), &authDomain.IssueTokenInput{
		ClientID:     clientID,
		ClientSecret: secret,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return nil, false
	}
	return output, true
}

// ValidateTokenHandler reports whether a token is usable and whom it belongs to.
// GET /api/v1/auth/validate?token=... answers 200 {status:"valid", user_id, scopes}
// or 401.
func (h *TokenHandler) ValidateTokenHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	principal, err := h.authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrForbidden) {
			err = authDomain.ErrInvalidCredentials
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPrincipalToValidateResponse(principal))
}

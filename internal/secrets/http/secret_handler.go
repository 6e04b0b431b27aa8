// Package http provides HTTP handlers for secret management operations.
// Secrets are encrypted at rest using envelope encryption and are versioned.
// Authentication and authorization run as route middleware before any handler here.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/httputil"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
	"github.com/allisson/secretbroker/internal/secrets/http/dto"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
	customValidation "github.com/allisson/secretbroker/internal/validation"
)

const idempotencyKeyHeader = "Idempotency-Key"

var errInvalidVersionParam = errors.New("version: must be a positive integer")

// SecretHandler handles HTTP requests for secret management operations.
type SecretHandler struct {
	secretUseCase secretsUseCase.SecretUseCase
	logger        *slog.Logger
}

// NewSecretHandler creates a new secret handler with required dependencies.
func NewSecretHandler(secretUseCase secretsUseCase.SecretUseCase, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		secretUseCase: secretUseCase,
		logger:        logger,
	}
}

// PutHandler stores a new version of a secret.
// POST /v1/secrets/:owner_id/:name - Requires secret:write:<owner_id>.
// Returns 201 Created with version metadata, or 200 OK when an idempotent put is replayed.
func (h *SecretHandler) PutHandler(c *gin.Context) {
	var req dto.PutSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.ResolveIdempotencyKey(c.GetHeader(idempotencyKeyHeader)); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	plaintext, err := req.DecodeValue()
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	ownerID, name := c.Param("owner_id"), c.Param("name")
	output, err := h.secretUseCase.Put(c.Request.Context(), &secretsDomain.PutInput{
		OwnerID:        ownerID,
		Name:           name,
		Plaintext:      plaintext,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	status := http.StatusCreated
	if output.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, dto.MapPutOutputToResponse(ownerID, name, output, requestid.Get(c)))
}

// GetHandler retrieves and decrypts a secret, optionally by version.
// GET /v1/secrets/:owner_id/:name?version=N - Requires secret:read:<owner_id>.
// Returns 200 OK with the base64 value. SECURITY: Plaintext is zeroed after response.
func (h *SecretHandler) GetHandler(c *gin.Context) {
	var version *uint
	if raw := c.Query("version"); raw != "" {
		parsed, err := parseVersion(raw)
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		version = &parsed
	}

	secretVersion, err := h.secretUseCase.Get(c.Request.Context(), c.Param("owner_id"), c.Param("name"), version)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(secretVersion.Plaintext)

	c.JSON(http.StatusOK, dto.MapVersionToGetResponse(secretVersion, requestid.Get(c)))
}

// ListVersionsHandler lists version metadata of a secret.
// GET /v1/secrets/:owner_id/:name/versions?offset=0&limit=50 - Requires secret:read:<owner_id>.
func (h *SecretHandler) ListVersionsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	secret, versions, err := h.secretUseCase.ListVersions(
		c.Request.Context(),
		c.Param("owner_id"),
		c.Param("name"),
		offset,
		limit,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVersionsToListResponse(secret, versions))
}

// RevokeHandler revokes a secret version.
// POST /v1/secrets/:owner_id/:name/revoke/:version - Requires secret:revoke:<owner_id>.
func (h *SecretHandler) RevokeHandler(c *gin.Context) {
	h.changeVersion(c, h.secretUseCase.Revoke)
}

// PromoteHandler makes a version the active one.
// POST /v1/secrets/:owner_id/:name/promote/:version - Requires secret:write:<owner_id>.
func (h *SecretHandler) PromoteHandler(c *gin.Context) {
	h.changeVersion(c, h.secretUseCase.Promote)
}

type versionChange func(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error)

func (h *SecretHandler) changeVersion(c *gin.Context, change versionChange) {
	version, err := parseVersion(c.Param("version"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	secretVersion, err := change(c.Request.Context(), c.Param("owner_id"), c.Param("name"), version)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVersionToResponse(secretVersion))
}

func parseVersion(raw string) (uint, error) {
	version, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || version == 0 {
		return 0, errInvalidVersionParam
	}
	return uint(version), nil
}

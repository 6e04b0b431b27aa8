package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/httputil"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
	"github.com/allisson/secretbroker/internal/secrets/http/dto"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
	customValidation "github.com/allisson/secretbroker/internal/validation"
)

// maxLegacyBodyBytes bounds the JSON documents accepted by the legacy store routes.
const maxLegacyBodyBytes = 1 << 20

var errBodyNotJSON = errors.New("body: must be a JSON document")

// LegacyHandler serves the query-string API key and bot data routes on top of the
// versioned secret store. Every store creates a new version.
type LegacyHandler struct {
	secretUseCase secretsUseCase.SecretUseCase
	logger        *slog.Logger
}

// NewLegacyHandler creates a new legacy handler.
func NewLegacyHandler(secretUseCase secretsUseCase.SecretUseCase, logger *slog.Logger) *LegacyHandler {
	return &LegacyHandler{
		secretUseCase: secretUseCase,
		logger:        logger,
	}
}

// StoreAPIKeyHandler stores the JSON body as the API key of a service.
// POST /api/v1/apikeys/store?owner_id=&service_name= - Requires secret:write:<owner_id>.
func (h *LegacyHandler) StoreAPIKeyHandler(c *gin.Context) {
	var query dto.APIKeyQuery
	if !h.bindQuery(c, &query, query.Validate) {
		return
	}

	output, ok := h.store(c, query.OwnerID, query.SecretName())
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.StoreAPIKeyResponse{
		Status:      "stored",
		KeyID:       fmt.Sprintf("%s/%s@v%d", query.OwnerID, query.SecretName(), output.Version),
		ServiceName: query.ServiceName,
	})
}

// RetrieveAPIKeyHandler returns the active API key of a service.
// GET /api/v1/apikeys/retrieve?owner_id=&service_name= - Requires secret:read:<owner_id>.
func (h *LegacyHandler) RetrieveAPIKeyHandler(c *gin.Context) {
	var query dto.APIKeyQuery
	if !h.bindQuery(c, &query, query.Validate) {
		return
	}

	h.retrieve(c, query.OwnerID, query.SecretName(), func(data json.RawMessage) any {
		return dto.RetrieveAPIKeyResponse{ServiceName: query.ServiceName, APIKey: data}
	})
}

// StoreBotDataHandler stores the JSON body as the data of a bot.
// POST /api/v1/botdata/store?bot_id= - Requires secret:write:<bot_id>.
func (h *LegacyHandler) StoreBotDataHandler(c *gin.Context) {
	var query dto.BotDataQuery
	if !h.bindQuery(c, &query, query.Validate) {
		return
	}

	if _, ok := h.store(c, query.BotID, dto.BotDataName); !ok {
		return
	}

	c.JSON(http.StatusOK, dto.StoreBotDataResponse{Status: "stored", BotID: query.BotID})
}

// RetrieveBotDataHandler returns the active data of a bot.
// GET /api/v1/botdata/retrieve?bot_id= - Requires secret:read:<bot_id>.
func (h *LegacyHandler) RetrieveBotDataHandler(c *gin.Context) {
	var query dto.BotDataQuery
	if !h.bindQuery(c, &query, query.Validate) {
		return
	}

	h.retrieve(c, query.BotID, dto.BotDataName, func(data json.RawMessage) any {
		return dto.RetrieveBotDataResponse{BotID: query.BotID, Data: data}
	})
}

func (h *LegacyHandler) bindQuery(c *gin.Context, query any, validate func() error) bool {
	if err := c.ShouldBindQuery(query); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	if err := validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}

func (h *LegacyHandler) store(c *gin.Context, ownerID, name string) (*secretsDomain.PutOutput, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLegacyBodyBytes+1))
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return nil, false
	}
	defer cryptoDomain.Zero(body)

	if len(body) > maxLegacyBodyBytes || !json.Valid(body) {
		httputil.HandleBadRequestGin(c, errBodyNotJSON, h.logger)
		return nil, false
	}

	output, err := h.secretUseCase.Put(c.Request.Context(), &secretsDomain.PutInput{
		OwnerID:        ownerID,
		Name:           name,
		Plaintext:      body,
		IdempotencyKey: c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return nil, false
	}
	return output, true
}

func (h *LegacyHandler) retrieve(
	c *gin.Context,
	ownerID, name string,
	respond func(data json.RawMessage) any,
) {
	secretVersion, err := h.secretUseCase.Get(c.Request.Context(), ownerID, name, nil)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(secretVersion.Plaintext)

	data, err := dto.AsJSON(secretVersion.Plaintext)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, respond(data))
}

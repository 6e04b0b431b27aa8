// Package http provides HTTP handlers for data encryption key management.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/secretbroker/internal/crypto/http/dto"
	cryptoUseCase "github.com/allisson/secretbroker/internal/crypto/usecase"
	"github.com/allisson/secretbroker/internal/httputil"
)

// DekHandler handles HTTP requests for DEK management.
type DekHandler struct {
	envelopeUseCase cryptoUseCase.EnvelopeUseCase
	logger          *slog.Logger
}

// NewDekHandler creates a new DEK handler.
func NewDekHandler(envelopeUseCase cryptoUseCase.EnvelopeUseCase, logger *slog.Logger) *DekHandler {
	return &DekHandler{
		envelopeUseCase: envelopeUseCase,
		logger:          logger,
	}
}

// RotateHandler retires the owner's active DEK and creates a new one. Existing
// versions keep decrypting with the retired DEK.
// POST /v1/owners/:owner_id/dek/rotate - Requires secret:rotate:<owner_id>.
func (h *DekHandler) RotateHandler(c *gin.Context) {
	dek, err := h.envelopeUseCase.RotateDek(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDekToRotateResponse(dek))
}

// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorMapping ties a sentinel from internal/errors to the response sent for it.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
	level   slog.Level
}

// errorMappings is checked in order. An empty message echoes the error text, which is
// only done for invalid input.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found", slog.LevelWarn},
	{apperrors.ErrGone, http.StatusGone, "revoked", "The requested secret version has been revoked", slog.LevelWarn},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "A conflict occurred with existing data", slog.LevelWarn},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", "", slog.LevelWarn},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication is required", slog.LevelWarn},
	{
		apperrors.ErrLocked, http.StatusLocked, "client_locked",
		"Account is locked due to too many failed authentication attempts", slog.LevelWarn,
	},
	{
		apperrors.ErrForbidden, http.StatusForbidden, "forbidden",
		"You don't have permission to access this resource", slog.LevelWarn,
	},
	{
		apperrors.ErrUnavailable, http.StatusServiceUnavailable, "unavailable",
		"A dependency is temporarily unavailable, retry later", slog.LevelError,
	},
	{
		apperrors.ErrIntegrity, http.StatusInternalServerError, "integrity_error",
		"Stored data failed integrity verification", slog.LevelError,
	},
}

var internalError = errorMapping{
	status:  http.StatusInternalServerError,
	code:    "internal_error",
	message: "An internal error occurred",
	level:   slog.LevelError,
}

func lookupMapping(err error) errorMapping {
	for _, m := range errorMappings {
		if apperrors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

// HandleErrorGin maps domain errors to HTTP status codes and writes a JSON error body.
// Messages for anything but invalid input are fixed strings so wrapped details never reach clients.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	m := lookupMapping(err)
	message := m.message
	if message == "" {
		message = err.Error()
	}
	if m.status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}

	if logger != nil {
		logger.Log(c.Request.Context(), m.level, "request failed",
			slog.Int("status_code", m.status),
			slog.String("error_code", m.code),
			slog.Any("error", err),
		)
	}

	c.JSON(m.status, ErrorResponse{Error: m.code, Message: message})
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters using Gin.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	}

	c.JSON(http.StatusBadRequest, errorResponse)
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors using Gin.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	}

	c.JSON(http.StatusUnprocessableEntity, errorResponse)
}

package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "github.com/allisson/secretbroker/internal/errors"
	"github.com/allisson/secretbroker/internal/httpclient"
	"github.com/allisson/secretbroker/internal/outbox/domain"
)

const submitLogPath = "/api/v1/logs/submit"

// SubmitLogRequest is the body of POST /api/v1/logs/submit.
type SubmitLogRequest struct {
	LogType string          `json:"log_type"`
	LogData json.RawMessage `json:"log_data"`
}

// LoggingServiceProcessor forwards events to the logging service. The event type
// becomes the log type and the stored payload is sent as log data unchanged.
type LoggingServiceProcessor struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewLoggingServiceProcessor creates a processor posting to baseURL + /api/v1/logs/submit.
func NewLoggingServiceProcessor(client *retryablehttp.Client, baseURL string) *LoggingServiceProcessor {
	return &LoggingServiceProcessor{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Process submits one event. Any non-2xx answer is an error so the event is retried.
func (p *LoggingServiceProcessor) Process(ctx context.Context, event *domain.Event) error {
	if !json.Valid([]byte(event.Payload)) {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "outbox payload is not valid json")
	}

	body, err := json.Marshal(SubmitLogRequest{
		LogType: event.Type,
		LogData: json.RawMessage(event.Payload),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal log submission")
	}

	req, err := retryablehttp.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+submitLogPath,
		bytes.NewReader(body),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to build log submission request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return httpclient.MapError(err, "logging service request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logging service returned status %d", resp.StatusCode)
	}
	return nil
}

// LogEventProcessor writes events to slog. It is used when no logging service is
// configured so the outbox still drains.
type LogEventProcessor struct {
	logger *slog.Logger
}

// NewLogEventProcessor creates a LogEventProcessor.
func NewLogEventProcessor(logger *slog.Logger) *LogEventProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventProcessor{logger: logger}
}

// Process logs the event payload under its event type.
func (p *LogEventProcessor) Process(ctx context.Context, event *domain.Event) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return apperrors.Wrap(err, "failed to decode outbox payload")
	}

	p.logger.InfoContext(ctx, "outbox event",
		slog.String("log_type", event.Type),
		slog.String("event_id", event.ID.String()),
		slog.Any("log_data", payload),
	)
	return nil
}

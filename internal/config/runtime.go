package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	validation "github.com/jellydator/validation"

	"github.com/allisson/secretbroker/internal/httpclient"
)

// maxDEKUsages caps encryptions per DEK. Random 96-bit nonces stay far from the
// birthday bound below 2^32 messages.
const maxDEKUsages int64 = 1 << 32

// Settings holds configuration that can change while the process runs.
type Settings struct {
	// DEKMaxAge rotates a DEK once it is older than this.
	DEKMaxAge time.Duration
	// DEKMaxUsages rotates a DEK once it has encrypted this many values.
	DEKMaxUsages int64
	// StorageTimeout bounds each persistence operation.
	StorageTimeout time.Duration
	// IdempotencyTTL is how long idempotency keys are honoured.
	IdempotencyTTL time.Duration
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DEKMaxAge, validation.Required, validation.Min(time.Minute)),
		validation.Field(&s.DEKMaxUsages, validation.Required, validation.Min(int64(1)), validation.Max(maxDEKUsages)),
		validation.Field(&s.StorageTimeout, validation.Required, validation.Min(10*time.Millisecond), validation.Max(5*time.Minute)),
		validation.Field(&s.IdempotencyTTL, validation.Required, validation.Min(time.Minute)),
	)
}

// SettingsProvider returns the current settings.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings Settings

// Settings implements SettingsProvider.
func (s StaticSettings) Settings() Settings {
	return Settings(s)
}

// SettingsSource loads a fresh copy of the settings. fallback supplies values
// the source does not define.
type SettingsSource interface {
	Load(ctx context.Context, fallback Settings) (Settings, error)
}

// RuntimeConfig publishes settings atomically and refreshes them on an interval.
type RuntimeConfig struct {
	current  atomic.Pointer[Settings]
	source   SettingsSource
	interval time.Duration
	logger   *slog.Logger
}

// NewRuntimeConfig creates a RuntimeConfig seeded with initial.
func NewRuntimeConfig(
	initial Settings,
	source SettingsSource,
	interval time.Duration,
	logger *slog.Logger,
) *RuntimeConfig {
	r := &RuntimeConfig{
		source:   source,
		interval: interval,
		logger:   logger,
	}
	r.current.Store(&initial)
	return r
}

// Settings returns the latest accepted settings.
func (r *RuntimeConfig) Settings() Settings {
	return *r.current.Load()
}

// Refresh loads settings from the source. Invalid or failed loads keep the previous settings.
func (r *RuntimeConfig) Refresh(ctx context.Context) error {
	previous := r.Settings()
	next, err := r.source.Load(ctx, previous)
	if err != nil {
		return fmt.Errorf("failed to load runtime settings: %w", err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid runtime settings: %w", err)
	}
	r.current.Store(&next)
	if next != previous {
		r.logger.Info("runtime settings updated",
			slog.Duration("dek_max_age", next.DEKMaxAge),
			slog.Int64("dek_max_usages", next.DEKMaxUsages),
			slog.Duration("storage_timeout", next.StorageTimeout),
			slog.Duration("idempotency_ttl", next.IdempotencyTTL),
		)
	}
	return nil
}

// Bootstrap performs the first refresh, bounded by timeout, so a configuration service
// is honoured from startup rather than one interval later. On failure the initial
// settings stay in effect and a warning is logged.
func (r *RuntimeConfig) Bootstrap(ctx context.Context, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("using initial runtime settings", slog.Any("error", err))
	}
}

// Run refreshes the settings every interval until ctx is cancelled.
func (r *RuntimeConfig) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("keeping previous runtime settings", slog.Any("error", err))
			}
		}
	}
}

// EnvSettingsSource re-reads settings from environment variables.
type EnvSettingsSource struct{}

// Load implements SettingsSource.
func (EnvSettingsSource) Load(_ context.Context, _ Settings) (Settings, error) {
	return loadSettingsFromEnv(), nil
}

// remoteSettings mirrors the settings document served by the configuration service.
type remoteSettings struct {
	DEKMaxAgeHours       *int64 `json:"dek_max_age_hours"`
	DEKMaxUsages         *int64 `json:"dek_max_usages"`
	StorageTimeoutMillis *int64 `json:"storage_timeout_ms"`
	IdempotencyTTLHours  *int64 `json:"idempotency_ttl_hours"`
}

type remoteSettingsResponse struct {
	Service  string         `json:"service"`
	Settings remoteSettings `json:"settings"`
}

// RemoteSettingsSource fetches settings from the configuration service at
// GET {baseURL}/api/v1/config/settings?service_name={service}.
type RemoteSettingsSource struct {
	client      *retryablehttp.Client
	baseURL     string
	serviceName string
}

// NewRemoteSettingsSource creates a RemoteSettingsSource.
func NewRemoteSettingsSource(client *retryablehttp.Client, baseURL, serviceName string) *RemoteSettingsSource {
	return &RemoteSettingsSource{
		client:      client,
		baseURL:     baseURL,
		serviceName: serviceName,
	}
}

// Load implements SettingsSource. Keys absent from the document keep their fallback value.
func (s *RemoteSettingsSource) Load(ctx context.Context, fallback Settings) (Settings, error) {
	endpoint := fmt.Sprintf(
		"%s/api/v1/config/settings?service_name=%s",
		s.baseURL,
		url.QueryEscape(s.serviceName),
	)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fallback, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fallback, httpclient.MapError(err, "configuration service request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fallback, fmt.Errorf("configuration service returned status %d", resp.StatusCode)
	}

	var body remoteSettingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fallback, fmt.Errorf("failed to decode configuration service response: %w", err)
	}

	settings := fallback
	if v := body.Settings.DEKMaxAgeHours; v != nil {
		settings.DEKMaxAge = time.Duration(*v) * time.Hour
	}
	if v := body.Settings.DEKMaxUsages; v != nil {
		settings.DEKMaxUsages = *v
	}
	if v := body.Settings.StorageTimeoutMillis; v != nil {
		settings.StorageTimeout = time.Duration(*v) * time.Millisecond
	}
	if v := body.Settings.IdempotencyTTLHours; v != nil {
		settings.IdempotencyTTL = time.Duration(*v) * time.Hour
	}
	return settings, nil
}

// NewSettingsSource picks the remote source when a configuration service URL is set.
func NewSettingsSource(cfg *Config, logger *slog.Logger) SettingsSource {
	if cfg.ConfigServiceURL == "" {
		return EnvSettingsSource{}
	}
	client := httpclient.New(httpclient.Options{
		Timeout:  cfg.HTTPClientTimeout,
		RetryMax: cfg.HTTPClientRetryMax,
		Logger:   logger,
	})
	return NewRemoteSettingsSource(client, cfg.ConfigServiceURL, cfg.ConfigServiceName)
}

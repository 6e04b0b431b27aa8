//go:build integration

package app_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/secretbroker/internal/app"
	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authDTO "github.com/allisson/secretbroker/internal/auth/http/dto"
	"github.com/allisson/secretbroker/internal/config"
	cryptoDTO "github.com/allisson/secretbroker/internal/crypto/http/dto"
	secretsDTO "github.com/allisson/secretbroker/internal/secrets/http/dto"
	"github.com/allisson/secretbroker/internal/testutil"
)

// brokerTestContext holds a running broker backed by a live database.
type brokerTestContext struct {
	container *app.Container
	server    *httptest.Server
	driver    string
}

func newKeks(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "kek-1:" + base64.StdEncoding.EncodeToString(key)
}

func setupBroker(t *testing.T, driver string) *brokerTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := testutil.SetupDB(t, driver)
	testutil.TeardownDB(t, db)

	cfg := &config.Config{
		DBDriver:             driver,
		DBConnectionString:   testutil.GetTestDSN(driver),
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		LogLevel:             "error",
		KEKs:                 newKeks(t),
		ActiveKEKID:          "kek-1",
		DEKAlgorithm:         "aes-gcm",
		Settings: config.Settings{
			DEKMaxAge:      24 * time.Hour,
			DEKMaxUsages:   1000,
			StorageTimeout: 5 * time.Second,
			IdempotencyTTL: time.Hour,
		},
		AuthTokenExpiration:    time.Hour,
		AuditSink:              "log",
		AuditBufferSize:        100,
		LockoutMaxAttempts:     5,
		LockoutDuration:        time.Minute,
		DEKRotationConcurrency: 2,
	}

	container := app.NewContainer(cfg)

	httpServer, err := container.HTTPServer()
	require.NoError(t, err, "failed to build HTTP server")

	ctx, cancel := context.WithCancel(context.Background())
	workersDone := make(chan error, 1)
	go func() { workersDone <- container.RunWorkers(ctx) }()

	server := httptest.NewServer(httpServer.GetHandler())

	t.Cleanup(func() {
		server.Close()
		cancel()
		assert.NoError(t, <-workersDone)
		assert.NoError(t, container.Shutdown(context.Background()))
	})

	return &brokerTestContext{container: container, server: server, driver: driver}
}

// issueToken creates a client holding scopes and exchanges its credentials for a token.
func (b *brokerTestContext) issueToken(t *testing.T, scopes ...string) string {
	t.Helper()

	clientUseCase, err := b.container.ClientUseCase()
	require.NoError(t, err)

	client, err := clientUseCase.Create(context.Background(), &authDomain.CreateClientInput{
		Name:     "integration-" + strings.Join(scopes, "-"),
		IsActive: true,
		Scopes:   scopes,
	})
	require.NoError(t, err)

	resp, body := b.do(t, http.MethodPost, "/v1/token", "", authDTO.IssueTokenRequest{
		ClientID:     client.ID.String(),
		ClientSecret: client.PlainSecret,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var token authDTO.IssueTokenResponse
	require.NoError(t, json.Unmarshal(body, &token))
	require.NotEmpty(t, token.Token)
	return token.Token
}

func (b *brokerTestContext) do(
	t *testing.T,
	method, path, token string,
	body any,
	headers map[string]string,
) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, b.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // test server URL
	resp, err := client.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp, respBody
}

func encode(value string) map[string]string {
	return map[string]string{"value": base64.StdEncoding.EncodeToString([]byte(value))}
}

func forEachDriver(t *testing.T, fn func(t *testing.T, broker *brokerTestContext)) {
	for _, driver := range []string{"postgres", "mysql"} {
		t.Run(driver, func(t *testing.T) {
			fn(t, setupBroker(t, driver))
		})
	}
}

func TestIntegration_Health(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		resp, _ := broker.do(t, http.MethodGet, "/health", "", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = broker.do(t, http.MethodGet, "/ready", "", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestIntegration_SecretLifecycle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		token := broker.issueToken(t, "secret:*:*")
		base := "/v1/secrets/payments/stripe"

		resp, body := broker.do(t, http.MethodPost, base, token, encode("sk_live_1"), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var put secretsDTO.PutSecretResponse
		require.NoError(t, json.Unmarshal(body, &put))
		assert.Equal(t, uint(1), put.Version)

		resp, body = broker.do(t, http.MethodPost, base, token, encode("sk_live_2"), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		t.Run("GetActive", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodGet, base, token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var got secretsDTO.GetSecretResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, uint(2), got.Version)
			assert.Equal(t, []byte("sk_live_2"), got.Value)
		})

		t.Run("GetPinnedVersion", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodGet, base+"?version=1", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var got secretsDTO.GetSecretResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, []byte("sk_live_1"), got.Value)
		})

		t.Run("DekRotationKeepsOldVersionsReadable", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodPost, "/v1/owners/payments/dek/rotate", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var rotated cryptoDTO.RotateDekResponse
			require.NoError(t, json.Unmarshal(body, &rotated))
			assert.Equal(t, "payments", rotated.OwnerID)

			resp, body = broker.do(t, http.MethodPost, base, token, encode("sk_live_3"), nil)
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

			resp, body = broker.do(t, http.MethodGet, "/v1/secrets/payments/stripe/versions", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var list secretsDTO.ListVersionsResponse
			require.NoError(t, json.Unmarshal(body, &list))
			require.Len(t, list.Data, 3)
			assert.Equal(t, list.Data[0].DekID, list.Data[1].DekID)
			assert.Equal(t, rotated.DekID, list.Data[2].DekID)

			resp, _ = broker.do(t, http.MethodGet, base+"?version=1", token, nil, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})

		t.Run("RevokeAndPromote", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodPost, base+"/revoke/3", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			resp, _ = broker.do(t, http.MethodGet, base, token, nil, nil)
			assert.Equal(t, http.StatusGone, resp.StatusCode)

			resp, _ = broker.do(t, http.MethodGet, base+"?version=3", token, nil, nil)
			assert.Equal(t, http.StatusGone, resp.StatusCode)

			resp, _ = broker.do(t, http.MethodPost, base+"/promote/3", token, nil, nil)
			assert.Equal(t, http.StatusGone, resp.StatusCode)

			resp, body = broker.do(t, http.MethodPost, base+"/promote/1", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			resp, body = broker.do(t, http.MethodGet, base, token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var got secretsDTO.GetSecretResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, uint(1), got.Version)
		})

		t.Run("Missing", func(t *testing.T) {
			resp, _ := broker.do(t, http.MethodGet, "/v1/secrets/payments/unknown", token, nil, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp, _ = broker.do(t, http.MethodGet, base+"?version=99", token, nil, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})
}

func TestIntegration_IdempotentPut(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		token := broker.issueToken(t, "secret:write:payments", "secret:read:payments")
		base := "/v1/secrets/payments/db-password"
		headers := map[string]string{"Idempotency-Key": "req-123"}

		resp, body := broker.do(t, http.MethodPost, base, token, encode("hunter2"), headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		resp, body = broker.do(t, http.MethodPost, base, token, encode("hunter2"), headers)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var replay secretsDTO.PutSecretResponse
		require.NoError(t, json.Unmarshal(body, &replay))
		assert.Equal(t, uint(1), replay.Version)

		resp, _ = broker.do(t, http.MethodPost, base, token, encode("different"), headers)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, body = broker.do(t, http.MethodGet, base+"/versions", token, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var list secretsDTO.ListVersionsResponse
		require.NoError(t, json.Unmarshal(body, &list))
		assert.Len(t, list.Data, 1)
	})
}

func TestIntegration_Authorization(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		admin := broker.issueToken(t, "secret:*:*")
		reader := broker.issueToken(t, "secret:read:payments")

		resp, body := broker.do(t, http.MethodPost, "/v1/secrets/payments/stripe", admin, encode("sk"), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		cases := []struct {
			name   string
			method string
			path   string
			token  string
			body   any
			want   int
		}{
			{"read own owner", http.MethodGet, "/v1/secrets/payments/stripe", reader, nil, http.StatusOK},
			{"write without scope", http.MethodPost, "/v1/secrets/payments/stripe", reader, encode("x"), http.StatusForbidden},
			{"read other owner", http.MethodGet, "/v1/secrets/billing/stripe", reader, nil, http.StatusForbidden},
			{"revoke without scope", http.MethodPost, "/v1/secrets/payments/stripe/revoke/1", reader, nil, http.StatusForbidden},
			{"rotate without scope", http.MethodPost, "/v1/owners/payments/dek/rotate", reader, nil, http.StatusForbidden},
			{"missing token", http.MethodGet, "/v1/secrets/payments/stripe", "", nil, http.StatusUnauthorized},
			{"unknown token", http.MethodGet, "/v1/secrets/payments/stripe", "not-a-token", nil, http.StatusUnauthorized},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp, _ := broker.do(t, tc.method, tc.path, tc.token, tc.body, nil)
				assert.Equal(t, tc.want, resp.StatusCode)
			})
		}
	})
}

func TestIntegration_LegacyRoutes(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		token := broker.issueToken(t, "secret:*:*")

		t.Run("APIKeys", func(t *testing.T) {
			query := url.Values{"owner_id": {"payments"}, "service_name": {"stripe"}}.Encode()

			resp, body := broker.do(t, http.MethodPost, "/api/v1/apikeys/store?"+query, token,
				[]byte(`{"key":"sk_test_1"}`), nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var stored secretsDTO.StoreAPIKeyResponse
			require.NoError(t, json.Unmarshal(body, &stored))
			assert.Equal(t, "payments/apikey.stripe@v1", stored.KeyID)

			resp, body = broker.do(t, http.MethodGet, "/api/v1/apikeys/retrieve?"+query, token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var retrieved secretsDTO.RetrieveAPIKeyResponse
			require.NoError(t, json.Unmarshal(body, &retrieved))
			assert.JSONEq(t, `{"key":"sk_test_1"}`, string(retrieved.APIKey))

			// The same secret is visible through the versioned API.
			resp, _ = broker.do(t, http.MethodGet, "/v1/secrets/payments/apikey.stripe", token, nil, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})

		t.Run("BotData", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodPost, "/api/v1/botdata/store?bot_id=bot-7", token,
				[]byte(`{"state":"idle"}`), nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			resp, body = broker.do(t, http.MethodGet, "/api/v1/botdata/retrieve?bot_id=bot-7", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var retrieved secretsDTO.RetrieveBotDataResponse
			require.NoError(t, json.Unmarshal(body, &retrieved))
			assert.JSONEq(t, `{"state":"idle"}`, string(retrieved.Data))

			resp, _ = broker.do(t, http.MethodPost, "/api/v1/botdata/store?bot_id=bot-7", token, []byte("not json"), nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})

		t.Run("Validate", func(t *testing.T) {
			resp, body := broker.do(t, http.MethodGet, "/api/v1/auth/validate", token, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var validated authDTO.ValidateTokenResponse
			require.NoError(t, json.Unmarshal(body, &validated))
			assert.Equal(t, "valid", validated.Status)
			assert.Equal(t, []string{"secret:*:*"}, validated.Scopes)
		})
	})
}

func TestIntegration_EnvelopeMaintenance(t *testing.T) {
	forEachDriver(t, func(t *testing.T, broker *brokerTestContext) {
		token := broker.issueToken(t, "secret:*:*")
		for i := range 3 {
			path := fmt.Sprintf("/v1/secrets/owner-%d/key", i)
			resp, body := broker.do(t, http.MethodPost, path, token, encode("value"), nil)
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		}

		envelope, err := broker.container.EnvelopeUseCase()
		require.NoError(t, err)

		// Every DEK is already wrapped by the active KEK.
		rewrapped, err := envelope.RewrapDeks(context.Background(), 10)
		require.NoError(t, err)
		assert.Zero(t, rewrapped)

		rotated, err := envelope.RotateExpiredDeks(context.Background())
		require.NoError(t, err)
		assert.Zero(t, rotated)
	})
}

package usecase_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/secretbroker/internal/config"
	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
	cryptoUsecase "github.com/allisson/secretbroker/internal/crypto/usecase"
	cryptoUsecaseMocks "github.com/allisson/secretbroker/internal/crypto/usecase/mocks"
	dbMocks "github.com/allisson/secretbroker/internal/database/mocks"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
	"github.com/allisson/secretbroker/internal/secrets/usecase"
	secretsUsecaseMocks "github.com/allisson/secretbroker/internal/secrets/usecase/mocks"
)

type storeFixture struct {
	secretRepo      *secretsUsecaseMocks.MemorySecretRepository
	idempotencyRepo *secretsUsecaseMocks.MemoryIdempotencyRepository
	dekRepo         *cryptoUsecaseMocks.MemoryDekRepository
	useCase         usecase.SecretUseCase
}

func testSettings() config.StaticSettings {
	return config.StaticSettings{
		DEKMaxAge:      24 * time.Hour,
		DEKMaxUsages:   1_000_000,
		StorageTimeout: 5 * time.Second,
		IdempotencyTTL: time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChain(t *testing.T) *cryptoDomain.KekChain {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	chain, err := cryptoDomain.NewKekChain("k1", []*cryptoDomain.Kek{{ID: "k1", Key: key}})
	require.NoError(t, err)
	return chain
}

func newStore(t *testing.T, settings config.SettingsProvider) *storeFixture {
	t.Helper()

	chain := testChain(t)
	dekRepo := cryptoUsecaseMocks.NewMemoryDekRepository()
	aeadManager := cryptoService.NewAEADManager()
	envelope := cryptoUsecase.NewEnvelopeUseCase(
		&dbMocks.TxManager{},
		dekRepo,
		cryptoService.NewKeyManager(aeadManager),
		aeadManager,
		cryptoService.NewNonceGuard(0),
		chain,
		settings,
		cryptoUsecase.EnvelopeOptions{},
		testLogger(),
	)

	secretRepo := secretsUsecaseMocks.NewMemorySecretRepository()
	idempotencyRepo := secretsUsecaseMocks.NewMemoryIdempotencyRepository()
	useCase := usecase.NewSecretUseCase(
		&dbMocks.TxManager{},
		secretRepo,
		idempotencyRepo,
		envelope,
		cryptoService.NewFingerprinter(chain),
		settings,
		testLogger(),
	)
	return &storeFixture{
		secretRepo:      secretRepo,
		idempotencyRepo: idempotencyRepo,
		dekRepo:         dekRepo,
		useCase:         useCase,
	}
}

func put(t *testing.T, uc usecase.SecretUseCase, owner, name, value string) *secretsDomain.PutOutput {
	t.Helper()
	output, err := uc.Put(context.Background(), &secretsDomain.PutInput{
		OwnerID:   owner,
		Name:      name,
		Plaintext: []byte(value),
	})
	require.NoError(t, err)
	return output
}

func uintPtr(v uint) *uint { return &v }

func TestSecretUseCase_PutAndGet(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, testSettings())

	first := put(t, f.useCase, "bot1", "x_api_key", "sk-123")
	second := put(t, f.useCase, "bot1", "x_api_key", "sk-456")
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, uint(2), second.Version)
	assert.False(t, second.Replayed)

	latest, err := f.useCase.Get(ctx, "bot1", "x_api_key", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-456", string(latest.Plaintext))
	assert.Equal(t, uint(2), latest.Version)

	v1, err := f.useCase.Get(ctx, "bot1", "x_api_key", uintPtr(1))
	require.NoError(t, err)
	assert.Equal(t, "sk-123", string(v1.Plaintext))

	// Both versions share the owner's single DEK.
	assert.Equal(t, v1.DekID, latest.DekID)
	assert.Len(t, f.dekRepo.ByOwner("bot1"), 1)
}

func TestSecretUseCase_Get(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, testSettings())
	put(t, f.useCase, "bot1", "x_api_key", "sk-123")

	t.Run("Unknown secret", func(t *testing.T) {
		_, err := f.useCase.Get(ctx, "bot1", "missing", nil)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Unknown version", func(t *testing.T) {
		_, err := f.useCase.Get(ctx, "bot1", "x_api_key", uintPtr(9))
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := f.useCase.Get(ctx, "", "x_api_key", nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = f.useCase.Get(ctx, "bot1", "x/../y", nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = f.useCase.Get(ctx, "bot1", "x_api_key", uintPtr(0))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Owners are isolated", func(t *testing.T) {
		_, err := f.useCase.Get(ctx, "bot2", "x_api_key", nil)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}

func TestSecretUseCase_ConcurrentPutsAreGapless(t *testing.T) {
	f := newStore(t, testSettings())

	const writers = 50
	versions := make([]uint, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			output, err := f.useCase.Put(context.Background(), &secretsDomain.PutInput{
				OwnerID:   "bot1",
				Name:      "x_api_key",
				Plaintext: []byte(fmt.Sprintf("value-%d", i)),
			})
			if assert.NoError(t, err) {
				versions[i] = output.Version
			}
		})
	}
	wg.Wait()

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for i, v := range versions {
		assert.Equal(t, uint(i+1), v)
	}
	assert.Len(t, f.secretRepo.Versions("bot1", "x_api_key"), writers)

	// Different secrets proceed independently.
	out := put(t, f.useCase, "bot1", "other", "v")
	assert.Equal(t, uint(1), out.Version)
}

func TestSecretUseCase_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Revoking the active version leaves no active version", func(t *testing.T) {
		f := newStore(t, testSettings())
		put(t, f.useCase, "bot1", "x_api_key", "sk-123")
		put(t, f.useCase, "bot1", "x_api_key", "sk-456")

		revoked, err := f.useCase.Revoke(ctx, "bot1", "x_api_key", 2)
		require.NoError(t, err)
		assert.Equal(t, secretsDomain.VersionStatusRevoked, revoked.Status)
		assert.NotNil(t, revoked.RevokedAt)
		assert.Nil(t, revoked.Ciphertext)

		_, err = f.useCase.Get(ctx, "bot1", "x_api_key", nil)
		assert.ErrorIs(t, err, secretsDomain.ErrNoActiveVersion)
		assert.ErrorIs(t, err, apperrors.ErrGone)

		_, err = f.useCase.Get(ctx, "bot1", "x_api_key", uintPtr(2))
		assert.ErrorIs(t, err, secretsDomain.ErrVersionRevoked)

		// Version 1 is not promoted automatically, but stays readable by number.
		v1, err := f.useCase.Get(ctx, "bot1", "x_api_key", uintPtr(1))
		require.NoError(t, err)
		assert.Equal(t, "sk-123", string(v1.Plaintext))

		out := put(t, f.useCase, "bot1", "x_api_key", "sk-789")
		assert.Equal(t, uint(3), out.Version)

		latest, err := f.useCase.Get(ctx, "bot1", "x_api_key", nil)
		require.NoError(t, err)
		assert.Equal(t, "sk-789", string(latest.Plaintext))
	})

	t.Run("Revoking an older version keeps the active one", func(t *testing.T) {
		f := newStore(t, testSettings())
		put(t, f.useCase, "bot1", "x_api_key", "sk-123")
		put(t, f.useCase, "bot1", "x_api_key", "sk-456")

		_, err := f.useCase.Revoke(ctx, "bot1", "x_api_key", 1)
		require.NoError(t, err)

		latest, err := f.useCase.Get(ctx, "bot1", "x_api_key", nil)
		require.NoError(t, err)
		assert.Equal(t, uint(2), latest.Version)
	})

	t.Run("Revoking twice is idempotent", func(t *testing.T) {
		f := newStore(t, testSettings())
		put(t, f.useCase, "bot1", "x_api_key", "sk-123")

		first, err := f.useCase.Revoke(ctx, "bot1", "x_api_key", 1)
		require.NoError(t, err)
		second, err := f.useCase.Revoke(ctx, "bot1", "x_api_key", 1)
		require.NoError(t, err)
		assert.Equal(t, first.RevokedAt.Unix(), second.RevokedAt.Unix())
	})

	t.Run("Not found", func(t *testing.T) {
		f := newStore(t, testSettings())
		put(t, f.useCase, "bot1", "x_api_key", "sk-123")

		_, err := f.useCase.Revoke(ctx, "bot1", "missing", 1)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)

		_, err = f.useCase.Revoke(ctx, "bot1", "x_api_key", 5)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})
}

func TestSecretUseCase_Promote(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, testSettings())
	put(t, f.useCase, "bot1", "x_api_key", "sk-123")
	put(t, f.useCase, "bot1", "x_api_key", "sk-456")
	_, err := f.useCase.Revoke(ctx, "bot1", "x_api_key", 2)
	require.NoError(t, err)

	_, err = f.useCase.Promote(ctx, "bot1", "x_api_key", 2)
	assert.ErrorIs(t, err, secretsDomain.ErrVersionRevoked)

	promoted, err := f.useCase.Promote(ctx, "bot1", "x_api_key", 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), promoted.Version)

	active, err := f.useCase.Get(ctx, "bot1", "x_api_key", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", string(active.Plaintext))

	head, versions, err := f.useCase.ListVersions(ctx, "bot1", "x_api_key", 0, 10)
	require.NoError(t, err)
	require.NotNil(t, head.ActiveVersion)
	assert.Equal(t, uint(1), *head.ActiveVersion)
	assert.Equal(t, uint(2), head.LatestVersion)
	require.Len(t, versions, 2)
	assert.Equal(t, uint(1), versions[0].Version)
	assert.Equal(t, secretsDomain.VersionStatusRevoked, versions[1].Status)
	for _, v := range versions {
		assert.Nil(t, v.Ciphertext)
		assert.Nil(t, v.Plaintext)
	}
}

func TestSecretUseCase_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("Replay returns the same version", func(t *testing.T) {
		f := newStore(t, testSettings())
		input := &secretsDomain.PutInput{
			OwnerID:        "bot1",
			Name:           "x_api_key",
			Plaintext:      []byte("sk-123"),
			IdempotencyKey: "req-1",
		}

		first, err := f.useCase.Put(ctx, input)
		require.NoError(t, err)
		second, err := f.useCase.Put(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, first.Version, second.Version)
		assert.False(t, first.Replayed)
		assert.True(t, second.Replayed)
		assert.Len(t, f.secretRepo.Versions("bot1", "x_api_key"), 1)

		records := f.idempotencyRepo.Records()
		require.Len(t, records, 1)
		assert.True(t, strings.HasPrefix(records[0].RequestHash, "k1:"))
		assert.NotContains(t, records[0].RequestHash, "sk-123")
	})

	t.Run("Different payload under the same key conflicts", func(t *testing.T) {
		f := newStore(t, testSettings())
		input := &secretsDomain.PutInput{
			OwnerID:        "bot1",
			Name:           "x_api_key",
			Plaintext:      []byte("sk-123"),
			IdempotencyKey: "req-1",
		}
		_, err := f.useCase.Put(ctx, input)
		require.NoError(t, err)

		input.Plaintext = []byte("sk-456")
		_, err = f.useCase.Put(ctx, input)
		assert.ErrorIs(t, err, secretsDomain.ErrIdempotencyKeyReused)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Len(t, f.secretRepo.Versions("bot1", "x_api_key"), 1)
	})

	t.Run("Keys are scoped to the secret", func(t *testing.T) {
		f := newStore(t, testSettings())
		for _, name := range []string{"a", "b"} {
			out, err := f.useCase.Put(ctx, &secretsDomain.PutInput{
				OwnerID:        "bot1",
				Name:           name,
				Plaintext:      []byte("v"),
				IdempotencyKey: "req-1",
			})
			require.NoError(t, err)
			assert.False(t, out.Replayed)
		}
	})

	t.Run("Expired records are not replayed", func(t *testing.T) {
		f := newStore(t, testSettings())
		require.NoError(t, f.idempotencyRepo.Save(ctx, &secretsDomain.IdempotencyRecord{
			OwnerID:     "bot1",
			Name:        "x_api_key",
			Key:         "req-1",
			RequestHash: "k1:stale",
			Version:     7,
			CreatedAt:   time.Now().UTC().Add(-2 * time.Hour),
		}))

		out, err := f.useCase.Put(ctx, &secretsDomain.PutInput{
			OwnerID:        "bot1",
			Name:           "x_api_key",
			Plaintext:      []byte("sk-123"),
			IdempotencyKey: "req-1",
		})
		require.NoError(t, err)
		assert.False(t, out.Replayed)
		assert.Equal(t, uint(1), out.Version)

		count, err := f.useCase.PurgeIdempotencyKeys(ctx, true)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Purge removes records past the TTL", func(t *testing.T) {
		f := newStore(t, testSettings())
		require.NoError(t, f.idempotencyRepo.Save(ctx, &secretsDomain.IdempotencyRecord{
			OwnerID:   "bot1",
			Name:      "x_api_key",
			Key:       "old",
			CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		}))

		count, err := f.useCase.PurgeIdempotencyKeys(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Len(t, f.idempotencyRepo.Records(), 1)

		count, err = f.useCase.PurgeIdempotencyKeys(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Empty(t, f.idempotencyRepo.Records())
	})
}

func TestSecretUseCase_EngineFailures(t *testing.T) {
	ctx := context.Background()

	newWithEnvelope := func(t *testing.T, envelope cryptoUsecase.EnvelopeUseCase, settings config.SettingsProvider) (
		usecase.SecretUseCase,
		*secretsUsecaseMocks.MemorySecretRepository,
	) {
		secretRepo := secretsUsecaseMocks.NewMemorySecretRepository()
		return usecase.NewSecretUseCase(
			&dbMocks.TxManager{},
			secretRepo,
			secretsUsecaseMocks.NewMemoryIdempotencyRepository(),
			envelope,
			cryptoService.NewFingerprinter(testChain(t)),
			settings,
			testLogger(),
		), secretRepo
	}

	t.Run("Wrap failure stores nothing", func(t *testing.T) {
		envelope := cryptoUsecaseMocks.NewMockEnvelopeUseCase(t)
		envelope.On("Wrap", mock.Anything, "bot1", []byte("v")).
			Return(nil, apperrors.Wrap(apperrors.ErrUnavailable, "database down")).
			Once()
		uc, repo := newWithEnvelope(t, envelope, testSettings())

		_, err := uc.Put(ctx, &secretsDomain.PutInput{OwnerID: "bot1", Name: "x", Plaintext: []byte("v")})
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Empty(t, repo.Versions("bot1", "x"))
	})

	t.Run("Integrity failure surfaces without plaintext", func(t *testing.T) {
		envelope := cryptoUsecaseMocks.NewMockEnvelopeUseCase(t)
		envelope.On("Wrap", mock.Anything, "bot1", []byte("v")).
			Return(&cryptoDomain.Envelope{OwnerID: "bot1", Ciphertext: []byte("ct"), Nonce: []byte("n"), DekID: uuid.New()}, nil).
			Once()
		envelope.On("Unwrap", mock.Anything, mock.Anything).Return(nil, cryptoDomain.ErrDecryptionFailed).Once()
		uc, _ := newWithEnvelope(t, envelope, testSettings())

		_, err := uc.Put(ctx, &secretsDomain.PutInput{OwnerID: "bot1", Name: "x", Plaintext: []byte("v")})
		require.NoError(t, err)

		got, err := uc.Get(ctx, "bot1", "x", nil)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	})

	t.Run("Waiting for a busy secret times out as unavailable", func(t *testing.T) {
		settings := testSettings()
		settings.StorageTimeout = 50 * time.Millisecond

		release := make(chan struct{})
		started := make(chan struct{})
		envelope := cryptoUsecaseMocks.NewMockEnvelopeUseCase(t)
		envelope.On("Wrap", mock.Anything, "bot1", []byte("slow")).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(&cryptoDomain.Envelope{OwnerID: "bot1", DekID: uuid.New(), Nonce: []byte("n1")}, nil).
			Once()
		uc, _ := newWithEnvelope(t, envelope, settings)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = uc.Put(ctx, &secretsDomain.PutInput{OwnerID: "bot1", Name: "x", Plaintext: []byte("slow")})
		}()
		<-started

		_, err := uc.Put(ctx, &secretsDomain.PutInput{OwnerID: "bot1", Name: "x", Plaintext: []byte("fast")})
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)

		close(release)
		<-done
	})
}

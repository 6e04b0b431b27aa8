package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authService "github.com/allisson/secretbroker/internal/auth/service"
	"github.com/allisson/secretbroker/internal/auth/usecase/mocks"
	"github.com/allisson/secretbroker/internal/config"
	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// plainClientSecretService treats the hash as the secret itself so tests skip Argon2id.
type plainClientSecretService struct{}

func (plainClientSecretService) GenerateSecret() (string, string, error) {
	return "generated", "generated", nil
}
func (plainClientSecretService) HashSecret(plain string) (string, error) { return plain, nil }
func (plainClientSecretService) CompareSecret(plain, hashed string) bool { return plain == hashed }

var _ authService.ClientSecretService = plainClientSecretService{}

// decoyRecorder records the hashes it was asked to compare against.
type decoyRecorder struct {
	plainClientSecretService
	compared []string
}

func (d *decoyRecorder) CompareSecret(plain, hashed string) bool {
	d.compared = append(d.compared, hashed)
	return d.plainClientSecretService.CompareSecret(plain, hashed)
}

type tokenFixture struct {
	useCase    *tokenUseCase
	clientRepo *mocks.MockClientRepository
	tokenRepo  *mocks.MockTokenRepository
	now        time.Time
}

func setupTokenUseCase(t *testing.T) *tokenFixture {
	t.Helper()
	cfg := &config.Config{
		AuthTokenExpiration: time.Hour,
		LockoutMaxAttempts:  3,
		LockoutDuration:     15 * time.Minute,
	}
	f := &tokenFixture{
		clientRepo: mocks.NewMockClientRepository(t),
		tokenRepo:  mocks.NewMockTokenRepository(t),
		now:        time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.useCase = NewTokenUseCase(
		cfg, f.clientRepo, f.tokenRepo, plainClientSecretService{}, authService.NewTokenService(), logger,
	).(*tokenUseCase)
	f.useCase.now = func() time.Time { return f.now }
	return f
}

func newActiveClient() *authDomain.Client {
	return &authDomain.Client{
		ID:       uuid.Must(uuid.NewV7()),
		Secret:   "right",
		Name:     "svc",
		IsActive: true,
		Scopes:   []string{"secret:read:bot1"},
	}
}

func TestTokenUseCase_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.tokenRepo.On("Create", ctx, mock.MatchedBy(func(token *authDomain.Token) bool {
			return token.ClientID == client.ID &&
				token.ExpiresAt.Equal(f.now.Add(time.Hour)) &&
				len(token.TokenHash) == 64
		})).Return(nil).Once()

		output, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "right"})
		require.NoError(t, err)
		assert.NotEmpty(t, output.PlainToken)
		assert.Equal(t, f.now.Add(time.Hour), output.ExpiresAt)
	})

	t.Run("Unknown client looks like wrong secret", func(t *testing.T) {
		f := setupTokenUseCase(t)
		id := uuid.Must(uuid.NewV7())
		recorder := &decoyRecorder{}
		f.useCase.secretService = recorder
		f.clientRepo.On("Get", ctx, id).Return(nil, authDomain.ErrClientNotFound).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: id, ClientSecret: "x"})
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Equal(t, []string{""}, recorder.compared, "decoy verification runs for unknown ids")
	})

	t.Run("Wrong secret counts attempt", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		client.FailedAttempts = 1

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.clientRepo.On("IncrementFailedAttempts", ctx, client.ID).Return(2, nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "wrong"})
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
	})

	t.Run("Reaching the limit locks", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		client.FailedAttempts = 2
		lockedUntil := f.now.Add(15 * time.Minute)

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.clientRepo.On("IncrementFailedAttempts", ctx, client.ID).Return(3, nil).Once()
		f.clientRepo.On("UpdateLockState", ctx, client.ID, 0, &lockedUntil).Return(nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "wrong"})
		assert.ErrorIs(t, err, authDomain.ErrClientLocked)
		assert.ErrorIs(t, err, apperrors.ErrLocked)
	})

	t.Run("Locked client is refused even with the right secret", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		until := f.now.Add(time.Minute)
		client.LockedUntil = &until

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "right"})
		assert.ErrorIs(t, err, authDomain.ErrClientLocked)
	})

	t.Run("Locked client with a wrong secret is not counted", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		until := f.now.Add(time.Minute)
		client.LockedUntil = &until

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "wrong"})
		assert.ErrorIs(t, err, authDomain.ErrClientLocked)
		f.clientRepo.AssertNotCalled(t, "IncrementFailedAttempts", mock.Anything, mock.Anything)
	})

	t.Run("Expired lock is cleared on success", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		until := f.now.Add(-time.Minute)
		client.LockedUntil = &until

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.clientRepo.On("UpdateLockState", ctx, client.ID, 0, (*time.Time)(nil)).Return(nil).Once()
		f.tokenRepo.On("Create", ctx, mock.Anything).Return(nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "right"})
		assert.NoError(t, err)
	})

	t.Run("Inactive client", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		client.IsActive = false

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "right"})
		assert.ErrorIs(t, err, authDomain.ErrClientInactive)
	})

	t.Run("Repository failure", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		dbErr := errors.New("db down")

		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.tokenRepo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		_, err := f.useCase.Issue(ctx, &authDomain.IssueTokenInput{ClientID: client.ID, ClientSecret: "right"})
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestTokenUseCase_Authenticate(t *testing.T) {
	ctx := context.Background()
	tokenService := authService.NewTokenService()
	hash := tokenService.HashToken("plain-token")

	t.Run("Success", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		token := &authDomain.Token{ClientID: client.ID, TokenHash: hash, ExpiresAt: f.now.Add(time.Minute)}

		f.tokenRepo.On("GetByTokenHash", ctx, hash).Return(token, nil).Once()
		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		principal, err := f.useCase.Authenticate(ctx, "plain-token")
		require.NoError(t, err)
		assert.Equal(t, client.ID.String(), principal.ID)
		assert.Equal(t, []string{"secret:read:bot1"}, principal.Scopes)
		assert.Equal(t, authDomain.PrincipalSourceLocal, principal.Source)
	})

	t.Run("Empty token", func(t *testing.T) {
		f := setupTokenUseCase(t)
		_, err := f.useCase.Authenticate(ctx, "")
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
	})

	t.Run("Unknown token", func(t *testing.T) {
		f := setupTokenUseCase(t)
		f.tokenRepo.On("GetByTokenHash", ctx, hash).Return(nil, authDomain.ErrTokenNotFound).Once()

		_, err := f.useCase.Authenticate(ctx, "plain-token")
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
	})

	t.Run("Expired token", func(t *testing.T) {
		f := setupTokenUseCase(t)
		token := &authDomain.Token{TokenHash: hash, ExpiresAt: f.now.Add(-time.Second)}
		f.tokenRepo.On("GetByTokenHash", ctx, hash).Return(token, nil).Once()

		_, err := f.useCase.Authenticate(ctx, "plain-token")
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
	})

	t.Run("Revoked token", func(t *testing.T) {
		f := setupTokenUseCase(t)
		revokedAt := f.now.Add(-time.Second)
		token := &authDomain.Token{TokenHash: hash, ExpiresAt: f.now.Add(time.Hour), RevokedAt: &revokedAt}
		f.tokenRepo.On("GetByTokenHash", ctx, hash).Return(token, nil).Once()

		_, err := f.useCase.Authenticate(ctx, "plain-token")
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
	})

	t.Run("Inactive client", func(t *testing.T) {
		f := setupTokenUseCase(t)
		client := newActiveClient()
		client.IsActive = false
		token := &authDomain.Token{ClientID: client.ID, TokenHash: hash, ExpiresAt: f.now.Add(time.Minute)}

		f.tokenRepo.On("GetByTokenHash", ctx, hash).Return(token, nil).Once()
		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		_, err := f.useCase.Authenticate(ctx, "plain-token")
		assert.ErrorIs(t, err, authDomain.ErrClientInactive)
	})
}

func TestTokenUseCase_PurgeExpired(t *testing.T) {
	f := setupTokenUseCase(t)
	ctx := context.Background()

	f.tokenRepo.On("DeleteExpired", ctx, f.now.Add(-24*time.Hour), true).Return(int64(7), nil).Once()

	count, err := f.useCase.PurgeExpired(ctx, 24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

// lockoutRepo keeps one client in memory. Get hands out snapshots and
// IncrementFailedAttempts is atomic, like the SQL repositories.
type lockoutRepo struct {
	ClientRepository

	mu     sync.Mutex
	client authDomain.Client
}

func (r *lockoutRepo) Get(context.Context, uuid.UUID) (*authDomain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.client
	return &snapshot, nil
}

func (r *lockoutRepo) IncrementFailedAttempts(context.Context, uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client.FailedAttempts++
	return r.client.FailedAttempts, nil
}

func (r *lockoutRepo) UpdateLockState(_ context.Context, _ uuid.UUID, attempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client.FailedAttempts = attempts
	r.client.LockedUntil = lockedUntil
	return nil
}

func TestTokenUseCase_Issue_ParallelFailuresLock(t *testing.T) {
	f := setupTokenUseCase(t)
	repo := &lockoutRepo{client: *newActiveClient()}
	clientID := repo.client.ID
	f.useCase.clientRepo = repo

	var (
		wg     sync.WaitGroup
		locked atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.useCase.Issue(context.Background(), &authDomain.IssueTokenInput{
				ClientID:     clientID,
				ClientSecret: "wrong",
			})
			if errors.Is(err, authDomain.ErrClientLocked) {
				locked.Add(1)
			}
		}()
	}
	wg.Wait()

	client, err := repo.Get(context.Background(), clientID)
	require.NoError(t, err)
	require.NotNil(t, client.LockedUntil, "ten parallel failures must trip a limit of three")
	assert.True(t, client.IsLocked(f.now))
	assert.GreaterOrEqual(t, locked.Load(), int32(1))
}

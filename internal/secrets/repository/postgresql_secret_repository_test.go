package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

var (
	secretColumnNames  = []string{"owner_id", "name", "active_version", "latest_version", "created_at", "updated_at"}
	versionColumnNames = []string{
		"owner_id", "name", "version", "dek_id", "ciphertext", "nonce", "status", "created_at", "revoked_at",
	}
)

func setupPostgres(t *testing.T) (*PostgreSQLSecretRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgreSQLSecretRepository(db), mock, func() { _ = db.Close() }
}

func newTestVersion() *secretsDomain.SecretVersion {
	return &secretsDomain.SecretVersion{
		OwnerID:    "bot1",
		Name:       "x_api_key",
		Version:    1,
		DekID:      uuid.Must(uuid.NewV7()),
		Ciphertext: []byte("ciphertext"),
		Nonce:      []byte("nonce-123456"),
		Status:     secretsDomain.VersionStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestPostgreSQLSecretRepository_EnsureSecret(t *testing.T) {
	repo, mock, cleanup := setupPostgres(t)
	defer cleanup()
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (owner_id, name) DO NOTHING")).
		WithArgs("bot1", "x_api_key", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSecret(context.Background(), "bot1", "x_api_key", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSecretRepository_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FROM secrets WHERE owner_id = $1 AND name = $2")).
			WithArgs("bot1", "x_api_key").
			WillReturnRows(sqlmock.NewRows(secretColumnNames).AddRow("bot1", "x_api_key", 2, 3, now, now))

		secret, err := repo.Get(ctx, "bot1", "x_api_key")
		require.NoError(t, err)
		require.NotNil(t, secret.ActiveVersion)
		assert.Equal(t, uint(2), *secret.ActiveVersion)
		assert.Equal(t, uint(3), secret.LatestVersion)
	})

	t.Run("No active version", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("bot1", "x_api_key").
			WillReturnRows(sqlmock.NewRows(secretColumnNames).AddRow("bot1", "x_api_key", nil, 3, now, now))

		secret, err := repo.GetForUpdate(ctx, "bot1", "x_api_key")
		require.NoError(t, err)
		assert.Nil(t, secret.ActiveVersion)
	})

	t.Run("Not found", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FROM secrets")).
			WillReturnRows(sqlmock.NewRows(secretColumnNames))

		_, err := repo.Get(ctx, "bot1", "missing")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})

	t.Run("Timeout is unavailable", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FROM secrets")).WillReturnError(context.DeadlineExceeded)

		_, err := repo.Get(ctx, "bot1", "x_api_key")
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestPostgreSQLSecretRepository_UpdateHead(t *testing.T) {
	ctx := context.Background()
	active := uint(4)
	secret := &secretsDomain.Secret{
		OwnerID:       "bot1",
		Name:          "x_api_key",
		ActiveVersion: &active,
		LatestVersion: 4,
		UpdatedAt:     time.Now().UTC(),
	}

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE secrets SET active_version = $1")).
			WithArgs(int64(4), secret.LatestVersion, secret.UpdatedAt, "bot1", "x_api_key").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateHead(ctx, secret))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cleared active version", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()
		cleared := *secret
		cleared.ActiveVersion = nil

		mock.ExpectExec(regexp.QuoteMeta("UPDATE secrets")).
			WithArgs(nil, cleared.LatestVersion, cleared.UpdatedAt, "bot1", "x_api_key").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateHead(ctx, &cleared))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing row", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE secrets")).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateHead(ctx, secret), secretsDomain.ErrSecretNotFound)
	})
}

func TestPostgreSQLSecretRepository_CreateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()
		v := newTestVersion()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secret_versions")).
			WithArgs(v.OwnerID, v.Name, v.Version, v.DekID, v.Ciphertext, v.Nonce, v.Status, v.CreatedAt, v.RevokedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.CreateVersion(ctx, v))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Version taken", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secret_versions")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "secret_versions_pkey"})

		err := repo.CreateVersion(ctx, newTestVersion())
		assert.ErrorIs(t, err, secretsDomain.ErrVersionConflict)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Nonce repeated", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secret_versions")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: versionNonceConstraint})

		err := repo.CreateVersion(ctx, newTestVersion())
		assert.ErrorIs(t, err, cryptoDomain.ErrNonceReuse)
	})
}

func TestPostgreSQLSecretRepository_GetVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()
		v := newTestVersion()
		revokedAt := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta("FROM secret_versions")).
			WithArgs("bot1", "x_api_key", uint(1)).
			WillReturnRows(sqlmock.NewRows(versionColumnNames).AddRow(
				v.OwnerID, v.Name, 1, v.DekID.String(), v.Ciphertext, v.Nonce, "revoked", v.CreatedAt, revokedAt,
			))

		got, err := repo.GetVersion(ctx, "bot1", "x_api_key", 1)
		require.NoError(t, err)
		assert.Equal(t, v.DekID, got.DekID)
		assert.Equal(t, v.Ciphertext, got.Ciphertext)
		assert.True(t, got.IsRevoked())
		require.NotNil(t, got.RevokedAt)
	})

	t.Run("Not found", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FROM secret_versions")).
			WillReturnRows(sqlmock.NewRows(versionColumnNames))

		_, err := repo.GetVersion(ctx, "bot1", "x_api_key", 9)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})
}

func TestPostgreSQLSecretRepository_ListVersions(t *testing.T) {
	repo, mock, cleanup := setupPostgres(t)
	defer cleanup()
	now := time.Now().UTC()
	dekID := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version ASC")).
		WithArgs("bot1", "x_api_key", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "name", "version", "dek_id", "status", "created_at", "revoked_at"}).
			AddRow("bot1", "x_api_key", 1, dekID.String(), "revoked", now, now).
			AddRow("bot1", "x_api_key", 2, dekID.String(), "active", now, nil))

	versions, err := repo.ListVersions(context.Background(), "bot1", "x_api_key", 0, 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, uint(1), versions[0].Version)
	assert.NotNil(t, versions[0].RevokedAt)
	assert.Nil(t, versions[1].RevokedAt)
	assert.Nil(t, versions[1].Ciphertext)
}

func TestPostgreSQLSecretRepository_RevokeVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("SET status = 'revoked', revoked_at = COALESCE(revoked_at, $1)")).
			WithArgs(now, "bot1", "x_api_key", uint(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.RevokeVersion(ctx, "bot1", "x_api_key", 2, now))
	})

	t.Run("Not found", func(t *testing.T) {
		repo, mock, cleanup := setupPostgres(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE secret_versions")).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.RevokeVersion(ctx, "bot1", "x_api_key", 2, now)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})
}

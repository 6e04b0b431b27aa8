package repository

import (
	"context"
	"database/sql"
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
)

var dekColumnNames = []string{
	"id", "owner_id", "kek_id", "algorithm", "encrypted_key", "nonce",
	"status", "usage_count", "created_at", "retired_at",
}

func newTestDek() *cryptoDomain.Dek {
	return &cryptoDomain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		OwnerID:      "bot1",
		KekID:        "k1",
		Algorithm:    cryptoDomain.AESGCM,
		EncryptedKey: []byte("encrypted-dek-data"),
		Nonce:        []byte("dek-nonce-12"),
		Status:       cryptoDomain.DekStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
}

func setupPostgresMock(t *testing.T) (*PostgreSQLDekRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgreSQLDekRepository(db), mock, func() { _ = db.Close() }
}

func TestPostgreSQLDekRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		dek := newTestDek()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deks")).
			WithArgs(dek.ID, dek.OwnerID, dek.KekID, dek.Algorithm, dek.EncryptedKey, dek.Nonce,
				dek.Status, dek.UsageCount, dek.CreatedAt, dek.RetiredAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, dek))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_SecondActiveDek", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deks")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "deks_owner_active_idx"})

		err := repo.Create(ctx, newTestDek())
		assert.ErrorIs(t, err, cryptoDomain.ErrActiveDekConflict)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Error_Timeout", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deks")).WillReturnError(context.DeadlineExceeded)

		err := repo.Create(ctx, newTestDek())
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestPostgreSQLDekRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Retired", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		dek := newTestDek()
		retiredAt := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta("FROM deks WHERE id = $1")).
			WithArgs(dek.ID).
			WillReturnRows(sqlmock.NewRows(dekColumnNames).AddRow(
				dek.ID.String(), dek.OwnerID, dek.KekID, "aes-gcm", dek.EncryptedKey, dek.Nonce,
				"retired", int64(12), dek.CreatedAt, retiredAt,
			))

		got, err := repo.Get(ctx, dek.ID)
		require.NoError(t, err)
		assert.Equal(t, dek.ID, got.ID)
		assert.Equal(t, "bot1", got.OwnerID)
		assert.Equal(t, cryptoDomain.DekStatusRetired, got.Status)
		assert.Equal(t, int64(12), got.UsageCount)
		require.NotNil(t, got.RetiredAt)
		assert.Equal(t, retiredAt, *got.RetiredAt)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("FROM deks WHERE id = $1")).WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrDekNotFound)
	})
}

func TestPostgreSQLDekRepository_GetActiveByOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		dek := newTestDek()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND status = 'active'")).
			WithArgs("bot1").
			WillReturnRows(sqlmock.NewRows(dekColumnNames).AddRow(
				dek.ID.String(), dek.OwnerID, dek.KekID, "chacha20-poly1305", dek.EncryptedKey, dek.Nonce,
				"active", int64(0), dek.CreatedAt, nil,
			))

		got, err := repo.GetActiveByOwner(ctx, "bot1")
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.ChaCha20, got.Algorithm)
		assert.True(t, got.IsActive())
		assert.Nil(t, got.RetiredAt)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1")).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetActiveByOwner(ctx, "bot1")
		assert.ErrorIs(t, err, cryptoDomain.ErrDekNotFound)
	})
}

func TestPostgreSQLDekRepository_Retire(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		id := uuid.Must(uuid.NewV7())

		mock.ExpectExec(regexp.QuoteMeta("UPDATE deks SET status = 'retired'")).
			WithArgs(now, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Retire(ctx, id, now))
	})

	t.Run("Error_AlreadyRetired", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE deks SET status = 'retired'")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Retire(ctx, uuid.Must(uuid.NewV7()), now), cryptoDomain.ErrDekRetired)
	})
}

func TestPostgreSQLDekRepository_IncrementUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		id := uuid.Must(uuid.NewV7())

		mock.ExpectQuery(regexp.QuoteMeta("RETURNING usage_count")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"usage_count"}).AddRow(int64(42)))

		count, err := repo.IncrementUsage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
	})

	t.Run("Error_Retired", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("RETURNING usage_count")).WillReturnError(sql.ErrNoRows)

		_, err := repo.IncrementUsage(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrDekRetired)
	})
}

func TestPostgreSQLDekRepository_Lists(t *testing.T) {
	ctx := context.Background()
	dek := newTestDek()
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(dekColumnNames).AddRow(
			dek.ID.String(), dek.OwnerID, "k0", "aes-gcm", dek.EncryptedKey, dek.Nonce,
			"active", int64(3), dek.CreatedAt, nil,
		)
	}

	t.Run("ListActiveCreatedBefore", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		cutoff := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'active' AND created_at < $1")).
			WithArgs(cutoff, 10).
			WillReturnRows(row())

		deks, err := repo.ListActiveCreatedBefore(ctx, cutoff, 10)
		require.NoError(t, err)
		require.Len(t, deks, 1)
		assert.Equal(t, dek.ID, deks[0].ID)
	})

	t.Run("ListNotWrappedBy", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE kek_id <> $1")).
			WithArgs("k1", 100).
			WillReturnRows(row())

		deks, err := repo.ListNotWrappedBy(ctx, "k1", 100)
		require.NoError(t, err)
		require.Len(t, deks, 1)
		assert.Equal(t, "k0", deks[0].KekID)
	})

	t.Run("UpdateWrapping", func(t *testing.T) {
		repo, mock, cleanup := setupPostgresMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE deks SET kek_id = $1")).
			WithArgs(dek.KekID, dek.EncryptedKey, dek.Nonce, dek.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateWrapping(ctx, dek))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

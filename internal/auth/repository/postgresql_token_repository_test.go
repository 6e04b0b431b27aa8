package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
)

var tokenColumnNames = []string{"id", "token_hash", "client_id", "expires_at", "revoked_at", "created_at"}

func newTestToken() *authDomain.Token {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &authDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: "0d5f8e1b2c",
		ClientID:  uuid.Must(uuid.NewV7()),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestPostgreSQLTokenRepository_Create(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgreSQLTokenRepository(db)
	token := newTestToken()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tokens")).
		WithArgs(token.ID, token.TokenHash, token.ClientID, token.ExpiresAt, nil, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Create(context.Background(), token))
}

func TestPostgreSQLTokenRepository_GetByTokenHash(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newSQLMock(t)
		repo := NewPostgreSQLTokenRepository(db)
		token := newTestToken()
		revokedAt := token.CreatedAt.Add(time.Minute)

		mock.ExpectQuery(regexp.QuoteMeta("FROM tokens WHERE token_hash = $1")).
			WithArgs(token.TokenHash).
			WillReturnRows(sqlmock.NewRows(tokenColumnNames).AddRow(
				token.ID.String(), token.TokenHash, token.ClientID.String(),
				token.ExpiresAt, revokedAt, token.CreatedAt,
			))

		got, err := repo.GetByTokenHash(context.Background(), token.TokenHash)

		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)
		assert.Equal(t, token.ClientID, got.ClientID)
		require.NotNil(t, got.RevokedAt)
		assert.False(t, got.IsValid(token.CreatedAt))
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newSQLMock(t)
		repo := NewPostgreSQLTokenRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM tokens")).
			WillReturnRows(sqlmock.NewRows(tokenColumnNames))

		_, err := repo.GetByTokenHash(context.Background(), "missing")
		assert.ErrorIs(t, err, authDomain.ErrTokenNotFound)
	})
}

func TestPostgreSQLTokenRepository_DeleteExpired(t *testing.T) {
	before := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("DryRun", func(t *testing.T) {
		db, mock := newSQLMock(t)
		repo := NewPostgreSQLTokenRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tokens WHERE expires_at < $1")).
			WithArgs(before).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		count, err := repo.DeleteExpired(context.Background(), before, true)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("Delete", func(t *testing.T) {
		db, mock := newSQLMock(t)
		repo := NewPostgreSQLTokenRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tokens WHERE expires_at < $1")).
			WithArgs(before).
			WillReturnResult(sqlmock.NewResult(0, 3))

		count, err := repo.DeleteExpired(context.Background(), before, false)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestPostgreSQLTokenRepository_RevokeByClientID(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgreSQLTokenRepository(db)
	clientID := uuid.Must(uuid.NewV7())
	revokedAt := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tokens SET revoked_at = $2 WHERE client_id = $1 AND revoked_at IS NULL")).
		WithArgs(clientID, revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.RevokeByClientID(context.Background(), clientID, revokedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

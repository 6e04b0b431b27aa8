package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLTokenRepository_Create(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewMySQLTokenRepository(db)
	token := newTestToken()
	id, err := token.ID.MarshalBinary()
	require.NoError(t, err)
	clientID, err := token.ClientID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tokens")).
		WithArgs(id, token.TokenHash, clientID, token.ExpiresAt, nil, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Create(context.Background(), token))
}

func TestMySQLTokenRepository_GetByTokenHash(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewMySQLTokenRepository(db)
	token := newTestToken()
	id, err := token.ID.MarshalBinary()
	require.NoError(t, err)
	clientID, err := token.ClientID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tokens WHERE token_hash = ?")).
		WithArgs(token.TokenHash).
		WillReturnRows(sqlmock.NewRows(tokenColumnNames).AddRow(
			id, token.TokenHash, clientID, token.ExpiresAt, nil, token.CreatedAt,
		))

	got, err := repo.GetByTokenHash(context.Background(), token.TokenHash)

	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)
	assert.Equal(t, token.ClientID, got.ClientID)
	assert.Nil(t, got.RevokedAt)
	assert.True(t, got.IsValid(token.CreatedAt))
}

func TestMySQLTokenRepository_DeleteExpired(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewMySQLTokenRepository(db)
	before := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tokens WHERE expires_at < ?")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 0))

	count, err := repo.DeleteExpired(context.Background(), before, false)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMySQLTokenRepository_RevokeByClientID(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewMySQLTokenRepository(db)
	token := newTestToken()
	clientID, err := token.ClientID.MarshalBinary()
	require.NoError(t, err)
	revokedAt := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tokens SET revoked_at = ? WHERE client_id = ? AND revoked_at IS NULL")).
		WithArgs(revokedAt, clientID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	count, err := repo.RevokeByClientID(context.Background(), token.ClientID, revokedAt)
	require.NoError(t, err)
	assert.Zero(t, count)
}

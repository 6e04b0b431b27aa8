package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	"github.com/allisson/secretbroker/internal/database"
)

// MySQLTokenRepository implements Token persistence for MySQL.
type MySQLTokenRepository struct {
	db *sql.DB
}

// NewMySQLTokenRepository creates a new MySQL Token repository.
func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}

// Create inserts a new Token.
func (m *MySQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		database.BinaryID(token.ID),
		token.TokenHash,
		database.BinaryID(token.ClientID),
		token.ExpiresAt,
		token.RevokedAt,
		token.CreatedAt,
	)
	return database.WrapError(err, "failed to create token")
}

// GetByTokenHash retrieves a Token by the SHA-256 hash of its plaintext.
func (m *MySQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	var token authDomain.Token
	var revokedAt sql.NullTime
	err := database.GetTx(ctx, m.db).
		QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = ?`, tokenHash).
		Scan(
			database.BinaryUUID{ID: &token.ID},
			&token.TokenHash,
			database.BinaryUUID{ID: &token.ClientID},
			&token.ExpiresAt,
			&revokedAt,
			&token.CreatedAt,
		)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrTokenNotFound
	}
	if err != nil {
		return nil, database.WrapError(err, "failed to get token")
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return &token, nil
}

// DeleteExpired removes tokens that expired before the given time.
func (m *MySQLTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, m.db), "expired tokens",
		` FROM tokens WHERE expires_at < ?`, dryRun, before)
}

// RevokeByClientID stamps revokedAt on every live token of the client and returns
// how many were revoked.
func (m *MySQLTokenRepository) RevokeByClientID(
	ctx context.Context,
	clientID uuid.UUID,
	revokedAt time.Time,
) (int64, error) {
	result, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE tokens SET revoked_at = ? WHERE client_id = ? AND revoked_at IS NULL`,
		revokedAt, database.BinaryID(clientID))
	if err != nil {
		return 0, database.WrapError(err, "failed to revoke client tokens")
	}
	count, err := result.RowsAffected()
	return count, database.WrapError(err, "failed to get affected rows")
}

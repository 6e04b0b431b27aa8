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

// PostgreSQLTokenRepository implements Token persistence for PostgreSQL.
type PostgreSQLTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLTokenRepository creates a new PostgreSQL Token repository.
func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}

// Create inserts a new Token.
func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.TokenHash, token.ClientID, token.ExpiresAt, token.RevokedAt, token.CreatedAt)
	return database.WrapError(err, "failed to create token")
}

// GetByTokenHash retrieves a Token by the SHA-256 hash of its plaintext.
func (p *PostgreSQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	var token authDomain.Token
	var revokedAt sql.NullTime
	err := database.GetTx(ctx, p.db).
		QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = $1`, tokenHash).
		Scan(&token.ID, &token.TokenHash, &token.ClientID, &token.ExpiresAt, &revokedAt, &token.CreatedAt)
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
func (p *PostgreSQLTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, p.db), "expired tokens",
		` FROM tokens WHERE expires_at < $1`, dryRun, before)
}

// RevokeByClientID stamps revokedAt on every live token of the client and returns
// how many were revoked.
func (p *PostgreSQLTokenRepository) RevokeByClientID(
	ctx context.Context,
	clientID uuid.UUID,
	revokedAt time.Time,
) (int64, error) {
	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE tokens SET revoked_at = $2 WHERE client_id = $1 AND revoked_at IS NULL`,
		clientID, revokedAt)
	if err != nil {
		return 0, database.WrapError(err, "failed to revoke client tokens")
	}
	count, err := result.RowsAffected()
	return count, database.WrapError(err, "failed to get affected rows")
}

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

// PostgreSQLClientRepository implements Client persistence for PostgreSQL.
type PostgreSQLClientRepository struct {
	db *sql.DB
}

// NewPostgreSQLClientRepository creates a new PostgreSQL Client repository.
func NewPostgreSQLClientRepository(db *sql.DB) *PostgreSQLClientRepository {
	return &PostgreSQLClientRepository{db: db}
}

// Create inserts a new Client.
func (p *PostgreSQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	values, err := clientValues(client, client.ID)
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, values...)
	return database.WrapError(err, "failed to create client")
}

// Update replaces name, active flag and scopes.
func (p *PostgreSQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	scopes, err := encodeScopes(client.Scopes)
	if err != nil {
		return err
	}
	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET name = $1, is_active = $2, scopes = $3 WHERE id = $4`,
		client.Name, client.IsActive, scopes, client.ID)
	return requireClientRow(result, err, "failed to update client")
}

// Get retrieves a Client by ID.
func (p *PostgreSQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	var record clientRecord
	err := database.GetTx(ctx, p.db).
		QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, clientID).
		Scan(record.dest(&record.client.ID)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrClientNotFound
	}
	if err != nil {
		return nil, database.WrapError(err, "failed to get client")
	}
	return record.decode()
}

func (p *PostgreSQLClientRepository) IncrementFailedAttempts(ctx context.Context, clientID uuid.UUID) (int, error) {
	var attempts int
	err := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`UPDATE clients SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`,
		clientID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, authDomain.ErrClientNotFound
	}
	if err != nil {
		return 0, database.WrapError(err, "failed to increment failed attempts")
	}
	return attempts, nil
}

// UpdateLockState records failed attempts and the lockout deadline.
func (p *PostgreSQLClientRepository) UpdateLockState(
	ctx context.Context,
	clientID uuid.UUID,
	failedAttempts int,
	lockedUntil *time.Time,
) error {
	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET failed_attempts = $1, locked_until = $2 WHERE id = $3`,
		failedAttempts, lockedUntil, clientID)
	return requireClientRow(result, err, "failed to update client lock state")
}

// UpdateSecret replaces the secret hash and resets the lockout counters.
func (p *PostgreSQLClientRepository) UpdateSecret(ctx context.Context, clientID uuid.UUID, hashedSecret string) error {
	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET secret = $2, failed_attempts = 0, locked_until = NULL WHERE id = $1`,
		clientID, hashedSecret)
	return requireClientRow(result, err, "failed to update client secret")
}

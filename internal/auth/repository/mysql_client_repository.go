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

// MySQLClientRepository implements Client persistence for MySQL.
//
// MySQL reports changed rather than matched rows, so updates do not map zero affected
// rows to ErrClientNotFound; the use cases load the client before writing.
type MySQLClientRepository struct {
	db *sql.DB
}

// NewMySQLClientRepository creates a new MySQL Client repository.
func NewMySQLClientRepository(db *sql.DB) *MySQLClientRepository {
	return &MySQLClientRepository{db: db}
}

// Create inserts a new Client.
func (m *MySQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	values, err := clientValues(client, database.BinaryID(client.ID))
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, values...)
	return database.WrapError(err, "failed to create client")
}

// Update replaces name, active flag and scopes.
func (m *MySQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	scopes, err := encodeScopes(client.Scopes)
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET name = ?, is_active = ?, scopes = ? WHERE id = ?`,
		client.Name, client.IsActive, scopes, database.BinaryID(client.ID))
	return database.WrapError(err, "failed to update client")
}

// Get retrieves a Client by ID.
func (m *MySQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	var record clientRecord
	err := database.GetTx(ctx, m.db).
		QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, database.BinaryID(clientID)).
		Scan(record.dest(database.BinaryUUID{ID: &record.client.ID})...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrClientNotFound
	}
	if err != nil {
		return nil, database.WrapError(err, "failed to get client")
	}
	return record.decode()
}

// IncrementFailedAttempts routes the new count through LAST_INSERT_ID(expr), which
// MySQL returns for the statement's own connection, so no second read is needed.
func (m *MySQLClientRepository) IncrementFailedAttempts(ctx context.Context, clientID uuid.UUID) (int, error) {
	result, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET failed_attempts = LAST_INSERT_ID(failed_attempts + 1) WHERE id = ?`,
		database.BinaryID(clientID))
	if err != nil {
		return 0, database.WrapError(err, "failed to increment failed attempts")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, database.WrapError(err, "failed to increment failed attempts")
	}
	if rows == 0 {
		return 0, authDomain.ErrClientNotFound
	}
	attempts, err := result.LastInsertId()
	if err != nil {
		return 0, database.WrapError(err, "failed to read failed attempts")
	}
	return int(attempts), nil
}

// UpdateLockState records failed attempts and the lockout deadline.
func (m *MySQLClientRepository) UpdateLockState(
	ctx context.Context,
	clientID uuid.UUID,
	failedAttempts int,
	lockedUntil *time.Time,
) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET failed_attempts = ?, locked_until = ? WHERE id = ?`,
		failedAttempts, lockedUntil, database.BinaryID(clientID))
	return database.WrapError(err, "failed to update client lock state")
}

// UpdateSecret replaces the secret hash and resets the lockout counters.
func (m *MySQLClientRepository) UpdateSecret(ctx context.Context, clientID uuid.UUID, hashedSecret string) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET secret = ?, failed_attempts = 0, locked_until = NULL WHERE id = ?`,
		hashedSecret, database.BinaryID(clientID))
	return database.WrapError(err, "failed to update client secret")
}

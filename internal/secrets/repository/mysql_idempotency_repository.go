package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// MySQLIdempotencyRepository implements idempotency record persistence for MySQL.
type MySQLIdempotencyRepository struct {
	db *sql.DB
}

// NewMySQLIdempotencyRepository creates a new MySQL idempotency repository.
func NewMySQLIdempotencyRepository(db *sql.DB) *MySQLIdempotencyRepository {
	return &MySQLIdempotencyRepository{db: db}
}

// Get retrieves the record stored under the key.
func (m *MySQLIdempotencyRepository) Get(
	ctx context.Context,
	ownerID, name, key string,
) (*secretsDomain.IdempotencyRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT owner_id, name, idempotency_key, request_hash, version, created_at
			  FROM idempotency_keys
			  WHERE owner_id = ? AND name = ? AND idempotency_key = ?`

	var record secretsDomain.IdempotencyRecord
	err := querier.QueryRowContext(ctx, query, ownerID, name, key).Scan(
		&record.OwnerID,
		&record.Name,
		&record.Key,
		&record.RequestHash,
		&record.Version,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrIdempotencyRecordNotFound
		}
		return nil, database.WrapError(err, "failed to get idempotency record")
	}
	return &record, nil
}

// Save inserts the record, replacing an expired one under the same key.
func (m *MySQLIdempotencyRepository) Save(ctx context.Context, record *secretsDomain.IdempotencyRecord) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO idempotency_keys (owner_id, name, idempotency_key, request_hash, version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			      request_hash = VALUES(request_hash),
			      version = VALUES(version),
			      created_at = VALUES(created_at)`

	_, err := querier.ExecContext(
		ctx,
		query,
		record.OwnerID,
		record.Name,
		record.Key,
		record.RequestHash,
		record.Version,
		record.CreatedAt,
	)
	if err != nil {
		return database.WrapError(err, "failed to save idempotency record")
	}
	return nil
}

// DeleteOlderThan removes records created before olderThan, or only counts them
// when dryRun is set.
func (m *MySQLIdempotencyRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, m.db), "idempotency records",
		` FROM idempotency_keys WHERE created_at < ?`, dryRun, olderThan)
}

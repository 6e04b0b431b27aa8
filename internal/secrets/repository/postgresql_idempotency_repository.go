package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// PostgreSQLIdempotencyRepository implements idempotency record persistence for PostgreSQL.
type PostgreSQLIdempotencyRepository struct {
	db *sql.DB
}

// NewPostgreSQLIdempotencyRepository creates a new PostgreSQL idempotency repository.
func NewPostgreSQLIdempotencyRepository(db *sql.DB) *PostgreSQLIdempotencyRepository {
	return &PostgreSQLIdempotencyRepository{db: db}
}

// Get retrieves the record stored under the key.
func (p *PostgreSQLIdempotencyRepository) Get(
	ctx context.Context,
	ownerID, name, key string,
) (*secretsDomain.IdempotencyRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT owner_id, name, idempotency_key, request_hash, version, created_at
			  FROM idempotency_keys
			  WHERE owner_id = $1 AND name = $2 AND idempotency_key = $3`

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
func (p *PostgreSQLIdempotencyRepository) Save(ctx context.Context, record *secretsDomain.IdempotencyRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO idempotency_keys (owner_id, name, idempotency_key, request_hash, version, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (owner_id, name, idempotency_key) DO UPDATE
			  SET request_hash = EXCLUDED.request_hash,
			      version = EXCLUDED.version,
			      created_at = EXCLUDED.created_at`

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
func (p *PostgreSQLIdempotencyRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, p.db), "idempotency records",
		` FROM idempotency_keys WHERE created_at < $1`, dryRun, olderThan)
}

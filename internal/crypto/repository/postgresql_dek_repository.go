package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/database"
)

var scanPostgresDek = scanDekWith(func(dek *cryptoDomain.Dek) any { return &dek.ID })

// PostgreSQLDekRepository stores DEKs in PostgreSQL. The single active DEK per owner
// is a partial unique index on (owner_id) WHERE status = 'active'.
type PostgreSQLDekRepository struct {
	db *sql.DB
}

func NewPostgreSQLDekRepository(db *sql.DB) *PostgreSQLDekRepository {
	return &PostgreSQLDekRepository{db: db}
}

// Create inserts dek, returning ErrActiveDekConflict when the owner already has an
// active DEK.
func (p *PostgreSQLDekRepository) Create(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO deks (`+dekColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		dekValues(dek, dek.ID)...,
	)
	if database.IsUniqueViolation(err) {
		return cryptoDomain.ErrActiveDekConflict
	}
	if err != nil {
		return database.WrapError(err, "failed to create dek")
	}
	return nil
}

// Get returns a DEK by id whatever its status.
func (p *PostgreSQLDekRepository) Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	row := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+dekColumns+` FROM deks WHERE id = $1`, dekID)
	dek, err := scanPostgresDek(row)
	return oneDek(dek, err, "failed to get dek")
}

func (p *PostgreSQLDekRepository) GetActiveByOwner(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	row := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+dekColumns+` FROM deks WHERE owner_id = $1 AND status = 'active'`, ownerID)
	dek, err := scanPostgresDek(row)
	return oneDek(dek, err, "failed to get active dek")
}

// Retire flips an active DEK to retired. A DEK that is already retired yields
// ErrDekRetired.
func (p *PostgreSQLDekRepository) Retire(ctx context.Context, dekID uuid.UUID, retiredAt time.Time) error {
	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE deks SET status = 'retired', retired_at = $1 WHERE id = $2 AND status = 'active'`,
		retiredAt, dekID)
	return requireActiveDek(result, err, "failed to retire dek")
}

// IncrementUsage bumps usage_count of an active DEK in one statement and returns
// the new count. A DEK retired concurrently yields ErrDekRetired.
func (p *PostgreSQLDekRepository) IncrementUsage(ctx context.Context, dekID uuid.UUID) (int64, error) {
	var count int64
	err := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`UPDATE deks SET usage_count = usage_count + 1
		 WHERE id = $1 AND status = 'active'
		 RETURNING usage_count`, dekID).Scan(&count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, cryptoDomain.ErrDekRetired
	case err != nil:
		return 0, database.WrapError(err, "failed to increment dek usage")
	}
	return count, nil
}

// ListActiveCreatedBefore returns up to limit active DEKs older than before, oldest
// first.
func (p *PostgreSQLDekRepository) ListActiveCreatedBefore(
	ctx context.Context,
	before time.Time,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	rows, err := database.GetTx(ctx, p.db).QueryContext(ctx,
		`SELECT `+dekColumns+` FROM deks
		 WHERE status = 'active' AND created_at < $1
		 ORDER BY created_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, database.WrapError(err, "failed to list active deks")
	}
	return collectDeks(rows, scanPostgresDek)
}

// ListNotWrappedBy locks and returns up to limit DEKs wrapped under a KEK other than
// kekID. Rows locked by another rewrap are skipped.
func (p *PostgreSQLDekRepository) ListNotWrappedBy(
	ctx context.Context,
	kekID string,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	rows, err := database.GetTx(ctx, p.db).QueryContext(ctx,
		`SELECT `+dekColumns+` FROM deks
		 WHERE kek_id <> $1
		 ORDER BY id ASC LIMIT $2
		 FOR UPDATE SKIP LOCKED`, kekID, limit)
	if err != nil {
		return nil, database.WrapError(err, "failed to list deks for rewrap")
	}
	return collectDeks(rows, scanPostgresDek)
}

func (p *PostgreSQLDekRepository) UpdateWrapping(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE deks SET kek_id = $1, encrypted_key = $2, nonce = $3 WHERE id = $4`,
		dek.KekID, dek.EncryptedKey, dek.Nonce, dek.ID)
	if err != nil {
		return database.WrapError(err, "failed to update dek wrapping")
	}
	return nil
}

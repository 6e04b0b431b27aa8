package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/database"
)

var scanMySQLDek = scanDekWith(func(dek *cryptoDomain.Dek) any { return database.BinaryUUID{ID: &dek.ID} })

// MySQLDekRepository stores DEKs in MySQL with ids as BINARY(16). A unique index on a
// generated column, NULL for retired rows, keeps one active DEK per owner.
type MySQLDekRepository struct {
	db *sql.DB
}

func NewMySQLDekRepository(db *sql.DB) *MySQLDekRepository {
	return &MySQLDekRepository{db: db}
}

func (m *MySQLDekRepository) Create(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO deks (`+dekColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dekValues(dek, database.BinaryID(dek.ID))...,
	)
	if database.IsUniqueViolation(err) {
		return cryptoDomain.ErrActiveDekConflict
	}
	if err != nil {
		return database.WrapError(err, "failed to create dek")
	}
	return nil
}

func (m *MySQLDekRepository) Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	row := database.GetTx(ctx, m.db).QueryRowContext(ctx,
		`SELECT `+dekColumns+` FROM deks WHERE id = ?`, database.BinaryID(dekID))
	dek, err := scanMySQLDek(row)
	return oneDek(dek, err, "failed to get dek")
}

func (m *MySQLDekRepository) GetActiveByOwner(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	row := database.GetTx(ctx, m.db).QueryRowContext(ctx,
		`SELECT `+dekColumns+` FROM deks WHERE owner_id = ? AND status = 'active'`, ownerID)
	dek, err := scanMySQLDek(row)
	return oneDek(dek, err, "failed to get active dek")
}

func (m *MySQLDekRepository) Retire(ctx context.Context, dekID uuid.UUID, retiredAt time.Time) error {
	result, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE deks SET status = 'retired', retired_at = ? WHERE id = ? AND status = 'active'`,
		retiredAt, database.BinaryID(dekID))
	return requireActiveDek(result, err, "failed to retire dek")
}

// IncrementUsage bumps usage_count and reads it back. MySQL has no RETURNING, so the
// read runs in the caller's transaction when there is one.
func (m *MySQLDekRepository) IncrementUsage(ctx context.Context, dekID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, m.db)
	id := database.BinaryID(dekID)

	result, err := querier.ExecContext(ctx,
		`UPDATE deks SET usage_count = usage_count + 1 WHERE id = ? AND status = 'active'`, id)
	if err := requireActiveDek(result, err, "failed to increment dek usage"); err != nil {
		return 0, err
	}

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT usage_count FROM deks WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, database.WrapError(err, "failed to read dek usage")
	}
	return count, nil
}

func (m *MySQLDekRepository) ListActiveCreatedBefore(
	ctx context.Context,
	before time.Time,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	rows, err := database.GetTx(ctx, m.db).QueryContext(ctx,
		`SELECT `+dekColumns+` FROM deks
		 WHERE status = 'active' AND created_at < ?
		 ORDER BY created_at ASC LIMIT ?`, before, limit)
	if err != nil {
		return nil, database.WrapError(err, "failed to list active deks")
	}
	return collectDeks(rows, scanMySQLDek)
}

func (m *MySQLDekRepository) ListNotWrappedBy(
	ctx context.Context,
	kekID string,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	rows, err := database.GetTx(ctx, m.db).QueryContext(ctx,
		`SELECT `+dekColumns+` FROM deks
		 WHERE kek_id <> ?
		 ORDER BY id ASC LIMIT ?
		 FOR UPDATE SKIP LOCKED`, kekID, limit)
	if err != nil {
		return nil, database.WrapError(err, "failed to list deks for rewrap")
	}
	return collectDeks(rows, scanMySQLDek)
}

func (m *MySQLDekRepository) UpdateWrapping(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE deks SET kek_id = ?, encrypted_key = ?, nonce = ? WHERE id = ?`,
		dek.KekID, dek.EncryptedKey, dek.Nonce, database.BinaryID(dek.ID))
	if err != nil {
		return database.WrapError(err, "failed to update dek wrapping")
	}
	return nil
}

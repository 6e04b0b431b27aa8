// Package repository implements DEK persistence for PostgreSQL and MySQL.
//
// Both engines keep at most one active DEK per owner through a unique index, so two
// broker instances racing to create one see ErrActiveDekConflict on the loser.
package repository

import (
	"database/sql"
	"errors"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/database"
)

const dekColumns = `id, owner_id, kek_id, algorithm, encrypted_key, nonce, status, usage_count, created_at, retired_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// dekValues returns insert arguments in dekColumns order.
func dekValues(dek *cryptoDomain.Dek, id any) []any {
	return []any{
		id, dek.OwnerID, dek.KekID, dek.Algorithm, dek.EncryptedKey, dek.Nonce,
		dek.Status, dek.UsageCount, dek.CreatedAt, dek.RetiredAt,
	}
}

// scanDekWith returns a reader of one deks row. idDest builds the destination of the
// id column, which each engine encodes differently.
func scanDekWith(idDest func(*cryptoDomain.Dek) any) func(rowScanner) (*cryptoDomain.Dek, error) {
	return func(row rowScanner) (*cryptoDomain.Dek, error) {
		var (
			dek       cryptoDomain.Dek
			retiredAt sql.NullTime
		)
		err := row.Scan(
			idDest(&dek), &dek.OwnerID, &dek.KekID, &dek.Algorithm, &dek.EncryptedKey,
			&dek.Nonce, &dek.Status, &dek.UsageCount, &dek.CreatedAt, &retiredAt,
		)
		if err != nil {
			return nil, err
		}
		if retiredAt.Valid {
			dek.RetiredAt = &retiredAt.Time
		}
		return &dek, nil
	}
}

// oneDek maps a single-row lookup result, turning a missing row into ErrDekNotFound.
func oneDek(dek *cryptoDomain.Dek, err error, message string) (*cryptoDomain.Dek, error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, cryptoDomain.ErrDekNotFound
	case err != nil:
		return nil, database.WrapError(err, message)
	}
	return dek, nil
}

// collectDeks drains rows with scan and closes them.
func collectDeks(rows *sql.Rows, scan func(rowScanner) (*cryptoDomain.Dek, error)) ([]*cryptoDomain.Dek, error) {
	defer func() { _ = rows.Close() }()

	var deks []*cryptoDomain.Dek
	for rows.Next() {
		dek, err := scan(rows)
		if err != nil {
			return nil, database.WrapError(err, "failed to scan dek")
		}
		deks = append(deks, dek)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError(err, "failed to iterate deks")
	}
	return deks, nil
}

// requireActiveDek maps an update that touched no active row to ErrDekRetired.
func requireActiveDek(result sql.Result, err error, message string) error {
	if err != nil {
		return database.WrapError(err, message)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return database.WrapError(err, message)
	}
	if rows == 0 {
		return cryptoDomain.ErrDekRetired
	}
	return nil
}

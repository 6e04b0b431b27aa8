// Package repository implements data persistence for secret management.
// Repositories support both PostgreSQL and MySQL. The secret head row is the lock
// point for writers; versions are append-only rows keyed by (owner_id, name, version).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	"github.com/allisson/secretbroker/internal/database"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// versionNonceConstraint is the unique constraint on (dek_id, nonce) of secret_versions.
const versionNonceConstraint = "secret_versions_dek_nonce_key"

const secretColumns = `owner_id, name, active_version, latest_version, created_at, updated_at`

// PostgreSQLSecretRepository implements Secret persistence for PostgreSQL databases.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL Secret repository.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}

// EnsureSecret inserts the secret head unless it already exists.
func (p *PostgreSQLSecretRepository) EnsureSecret(ctx context.Context, ownerID, name string, now time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secrets (owner_id, name, active_version, latest_version, created_at, updated_at)
			  VALUES ($1, $2, NULL, 0, $3, $3)
			  ON CONFLICT (owner_id, name) DO NOTHING`

	if _, err := querier.ExecContext(ctx, query, ownerID, name, now); err != nil {
		return database.WrapError(err, "failed to ensure secret")
	}
	return nil
}

// Get retrieves the secret head.
func (p *PostgreSQLSecretRepository) Get(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE owner_id = $1 AND name = $2`
	return p.getSecret(ctx, query, ownerID, name)
}

// GetForUpdate retrieves the secret head and locks its row until the transaction ends.
func (p *PostgreSQLSecretRepository) GetForUpdate(
	ctx context.Context,
	ownerID, name string,
) (*secretsDomain.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE owner_id = $1 AND name = $2 FOR UPDATE`
	return p.getSecret(ctx, query, ownerID, name)
}

func (p *PostgreSQLSecretRepository) getSecret(
	ctx context.Context,
	query, ownerID, name string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	secret, err := scanSecret(querier.QueryRowContext(ctx, query, ownerID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, database.WrapError(err, "failed to get secret")
	}
	return secret, nil
}

// UpdateHead persists the active and latest version pointers.
func (p *PostgreSQLSecretRepository) UpdateHead(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET active_version = $1, latest_version = $2, updated_at = $3
			  WHERE owner_id = $4 AND name = $5`

	result, err := querier.ExecContext(
		ctx,
		query,
		nullableVersion(secret.ActiveVersion),
		secret.LatestVersion,
		secret.UpdatedAt,
		secret.OwnerID,
		secret.Name,
	)
	if err != nil {
		return database.WrapError(err, "failed to update secret")
	}
	return requireOneRow(result, secretsDomain.ErrSecretNotFound, "failed to update secret")
}

// CreateVersion inserts a new secret version.
func (p *PostgreSQLSecretRepository) CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secret_versions
			  (owner_id, name, version, dek_id, ciphertext, nonce, status, created_at, revoked_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.OwnerID,
		version.Name,
		version.Version,
		version.DekID,
		version.Ciphertext,
		version.Nonce,
		version.Status,
		version.CreatedAt,
		version.RevokedAt,
	)
	if err != nil {
		return versionInsertError(err)
	}
	return nil
}

// GetVersion retrieves one version including its ciphertext.
func (p *PostgreSQLSecretRepository) GetVersion(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT owner_id, name, version, dek_id, ciphertext, nonce, status, created_at, revoked_at
			  FROM secret_versions
			  WHERE owner_id = $1 AND name = $2 AND version = $3`

	var v secretsDomain.SecretVersion
	var revokedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, ownerID, name, version).Scan(
		&v.OwnerID,
		&v.Name,
		&v.Version,
		&v.DekID,
		&v.Ciphertext,
		&v.Nonce,
		&v.Status,
		&v.CreatedAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrVersionNotFound
		}
		return nil, database.WrapError(err, "failed to get secret version")
	}
	if revokedAt.Valid {
		v.RevokedAt = &revokedAt.Time
	}
	return &v, nil
}

// ListVersions returns version metadata in ascending version order.
func (p *PostgreSQLSecretRepository) ListVersions(
	ctx context.Context,
	ownerID, name string,
	offset, limit int,
) ([]*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT owner_id, name, version, dek_id, status, created_at, revoked_at
			  FROM secret_versions
			  WHERE owner_id = $1 AND name = $2
			  ORDER BY version ASC
			  LIMIT $3 OFFSET $4`

	rows, err := querier.QueryContext(ctx, query, ownerID, name, limit, offset)
	if err != nil {
		return nil, database.WrapError(err, "failed to list secret versions")
	}
	defer func() { _ = rows.Close() }()

	versions := make([]*secretsDomain.SecretVersion, 0)
	for rows.Next() {
		var v secretsDomain.SecretVersion
		var revokedAt sql.NullTime
		if err := rows.Scan(
			&v.OwnerID,
			&v.Name,
			&v.Version,
			&v.DekID,
			&v.Status,
			&v.CreatedAt,
			&revokedAt,
		); err != nil {
			return nil, database.WrapError(err, "failed to scan secret version")
		}
		if revokedAt.Valid {
			v.RevokedAt = &revokedAt.Time
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError(err, "failed to iterate secret versions")
	}
	return versions, nil
}

// RevokeVersion marks a version revoked, keeping the first revocation time.
func (p *PostgreSQLSecretRepository) RevokeVersion(
	ctx context.Context,
	ownerID, name string,
	version uint,
	revokedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secret_versions
			  SET status = 'revoked', revoked_at = COALESCE(revoked_at, $1)
			  WHERE owner_id = $2 AND name = $3 AND version = $4`

	result, err := querier.ExecContext(ctx, query, revokedAt, ownerID, name, version)
	if err != nil {
		return database.WrapError(err, "failed to revoke secret version")
	}
	return requireOneRow(result, secretsDomain.ErrVersionNotFound, "failed to revoke secret version")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	var active sql.NullInt64
	if err := row.Scan(
		&secret.OwnerID,
		&secret.Name,
		&active,
		&secret.LatestVersion,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if active.Valid {
		v := uint(active.Int64)
		secret.ActiveVersion = &v
	}
	return &secret, nil
}

func nullableVersion(version *uint) sql.NullInt64 {
	if version == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*version), Valid: true}
}

func requireOneRow(result sql.Result, notFound error, message string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return database.WrapError(err, message)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// versionInsertError tells a lost version race from a repeated nonce.
func versionInsertError(err error) error {
	if !database.IsUniqueViolation(err) {
		return database.WrapError(err, "failed to create secret version")
	}
	if database.UniqueConstraint(err) == versionNonceConstraint {
		return cryptoDomain.ErrNonceReuse
	}
	return secretsDomain.ErrVersionConflict
}

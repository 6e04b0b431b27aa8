package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// MySQLSecretRepository implements Secret persistence for MySQL databases.
// DEK ids are stored as BINARY(16).
//
// MySQL reports changed rather than matched rows for UPDATE, so updates here do
// not treat zero affected rows as missing; callers read the rows under lock first.
type MySQLSecretRepository struct {
	db *sql.DB
}

// NewMySQLSecretRepository creates a new MySQL Secret repository.
func NewMySQLSecretRepository(db *sql.DB) *MySQLSecretRepository {
	return &MySQLSecretRepository{db: db}
}

// EnsureSecret inserts the secret head unless it already exists.
func (m *MySQLSecretRepository) EnsureSecret(ctx context.Context, ownerID, name string, now time.Time) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO secrets (owner_id, name, active_version, latest_version, created_at, updated_at)
			  VALUES (?, ?, NULL, 0, ?, ?)
			  ON DUPLICATE KEY UPDATE owner_id = owner_id`

	if _, err := querier.ExecContext(ctx, query, ownerID, name, now, now); err != nil {
		return database.WrapError(err, "failed to ensure secret")
	}
	return nil
}

// Get retrieves the secret head.
func (m *MySQLSecretRepository) Get(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE owner_id = ? AND name = ?`
	return m.getSecret(ctx, query, ownerID, name)
}

// GetForUpdate retrieves the secret head and locks its row until the transaction ends.
func (m *MySQLSecretRepository) GetForUpdate(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE owner_id = ? AND name = ? FOR UPDATE`
	return m.getSecret(ctx, query, ownerID, name)
}

func (m *MySQLSecretRepository) getSecret(
	ctx context.Context,
	query, ownerID, name string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

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
func (m *MySQLSecretRepository) UpdateHead(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secrets SET active_version = ?, latest_version = ?, updated_at = ?
			  WHERE owner_id = ? AND name = ?`

	_, err := querier.ExecContext(
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
	return nil
}

// CreateVersion inserts a new secret version.
func (m *MySQLSecretRepository) CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO secret_versions
			  (owner_id, name, version, dek_id, ciphertext, nonce, status, created_at, revoked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.OwnerID,
		version.Name,
		version.Version,
		database.BinaryID(version.DekID),
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
func (m *MySQLSecretRepository) GetVersion(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT owner_id, name, version, dek_id, ciphertext, nonce, status, created_at, revoked_at
			  FROM secret_versions
			  WHERE owner_id = ? AND name = ? AND version = ?`

	var v secretsDomain.SecretVersion
	var revokedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, ownerID, name, version).Scan(
		&v.OwnerID,
		&v.Name,
		&v.Version,
		database.BinaryUUID{ID: &v.DekID},
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
func (m *MySQLSecretRepository) ListVersions(
	ctx context.Context,
	ownerID, name string,
	offset, limit int,
) ([]*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT owner_id, name, version, dek_id, status, created_at, revoked_at
			  FROM secret_versions
			  WHERE owner_id = ? AND name = ?
			  ORDER BY version ASC
			  LIMIT ? OFFSET ?`

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
			database.BinaryUUID{ID: &v.DekID},
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
func (m *MySQLSecretRepository) RevokeVersion(
	ctx context.Context,
	ownerID, name string,
	version uint,
	revokedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secret_versions
			  SET status = 'revoked', revoked_at = COALESCE(revoked_at, ?)
			  WHERE owner_id = ? AND name = ? AND version = ?`

	if _, err := querier.ExecContext(ctx, query, revokedAt, ownerID, name, version); err != nil {
		return database.WrapError(err, "failed to revoke secret version")
	}
	return nil
}

// Package repository implements persistence for clients and tokens.
//
// PostgreSQL uses native UUID types, MySQL uses BINARY(16). Client scopes are stored
// as a JSON array in a text column so both engines share one encoding.
package repository

import (
	"database/sql"
	"encoding/json"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	"github.com/allisson/secretbroker/internal/database"
	apperrors "github.com/allisson/secretbroker/internal/errors"
)

const (
	clientColumns = `id, secret, name, is_active, scopes, failed_attempts, locked_until, created_at`
	tokenColumns  = `id, token_hash, client_id, expires_at, revoked_at, created_at`
)

// clientRecord is a clients row before its scopes and lockout deadline are decoded.
type clientRecord struct {
	client      authDomain.Client
	scopes      string
	lockedUntil sql.NullTime
}

// dest returns Scan destinations in clientColumns order. id receives the id column,
// which each engine decodes differently.
func (r *clientRecord) dest(id any) []any {
	return []any{
		id,
		&r.client.Secret,
		&r.client.Name,
		&r.client.IsActive,
		&r.scopes,
		&r.client.FailedAttempts,
		&r.lockedUntil,
		&r.client.CreatedAt,
	}
}

func (r *clientRecord) decode() (*authDomain.Client, error) {
	if err := json.Unmarshal([]byte(r.scopes), &r.client.Scopes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client scopes")
	}
	if r.lockedUntil.Valid {
		r.client.LockedUntil = &r.lockedUntil.Time
	}
	return &r.client, nil
}

// clientValues returns insert arguments in clientColumns order.
func clientValues(client *authDomain.Client, id any) ([]any, error) {
	scopes, err := encodeScopes(client.Scopes)
	if err != nil {
		return nil, err
	}
	return []any{
		id,
		client.Secret,
		client.Name,
		client.IsActive,
		scopes,
		client.FailedAttempts,
		client.LockedUntil,
		client.CreatedAt,
	}, nil
}

func encodeScopes(scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	raw, err := json.Marshal(scopes)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal client scopes")
	}
	return string(raw), nil
}

// requireClientRow maps an update that matched nothing to ErrClientNotFound.
// PostgreSQL only: MySQL reports changed rather than matched rows.
func requireClientRow(result sql.Result, err error, message string) error {
	if err != nil {
		return database.WrapError(err, message)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return database.WrapError(err, "failed to get affected rows")
	}
	if rows == 0 {
		return authDomain.ErrClientNotFound
	}
	return nil
}

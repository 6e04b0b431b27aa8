// Package repository persists outbox events for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	"github.com/allisson/secretbroker/internal/outbox/domain"
)

const eventColumns = `id, event_type, payload, status, attempts, last_error, delivered_at, created_at, updated_at`

// scanEvent reads one row into event. The id column goes to id so each driver can
// decode its own representation.
func scanEvent(rows *sql.Rows, event *domain.Event, id any) error {
	return rows.Scan(id, &event.Type, &event.Payload, &event.Status, &event.Attempts,
		&event.LastError, &event.DeliveredAt, &event.CreatedAt, &event.UpdatedAt)
}

// PostgreSQLOutboxRepository stores outbox events in PostgreSQL.
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{db: db}
}

// Enqueue inserts a pending event.
func (r *PostgreSQLOutboxRepository) Enqueue(ctx context.Context, event *domain.Event) error {
	q := database.GetTx(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO outbox_events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Type, event.Payload, event.Status, event.Attempts,
		event.LastError, event.DeliveredAt, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return database.WrapError(err, "failed to enqueue outbox event")
	}
	return nil
}

// ClaimPending locks the oldest pending events. Rows held by another dispatcher are
// skipped.
func (r *PostgreSQLOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Event, error) {
	q := database.GetTx(ctx, r.db)

	rows, err := q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM outbox_events
		 WHERE status = $1 ORDER BY created_at LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		domain.StatusPending, limit,
	)
	if err != nil {
		return nil, database.WrapError(err, "failed to claim outbox events")
	}
	defer func() { _ = rows.Close() }()

	var events []*domain.Event
	for rows.Next() {
		event := &domain.Event{}
		if err := scanEvent(rows, event, &event.ID); err != nil {
			return nil, database.WrapError(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError(err, "failed to read outbox events")
	}
	return events, nil
}

// SaveDeliveryState writes back status, attempts, last error and delivery time.
func (r *PostgreSQLOutboxRepository) SaveDeliveryState(ctx context.Context, event *domain.Event) error {
	q := database.GetTx(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = $2, attempts = $3, last_error = $4, delivered_at = $5, updated_at = NOW()
		 WHERE id = $1`,
		event.ID, event.Status, event.Attempts, event.LastError, event.DeliveredAt,
	)
	if err != nil {
		return database.WrapError(err, "failed to save outbox delivery state")
	}
	return nil
}

func (r *PostgreSQLOutboxRepository) DeleteSettledBefore(
	ctx context.Context,
	before time.Time,
	dryRun bool,
) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, r.db), "settled outbox events",
		` FROM outbox_events WHERE status IN ($1, $2) AND updated_at < $3`, dryRun,
		domain.StatusDelivered, domain.StatusFailed, before)
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	"github.com/allisson/secretbroker/internal/outbox/domain"
)

// MySQLOutboxRepository stores outbox events in MySQL, with ids as BINARY(16).
type MySQLOutboxRepository struct {
	db *sql.DB
}

func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{db: db}
}

func (r *MySQLOutboxRepository) Enqueue(ctx context.Context, event *domain.Event) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx,
		`INSERT INTO outbox_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		database.BinaryID(event.ID), event.Type, event.Payload, event.Status, event.Attempts,
		event.LastError, event.DeliveredAt, event.CreatedAt, event.UpdatedAt,
	)
	return database.WrapError(err, "failed to enqueue outbox event")
}

// ClaimPending needs MySQL 8.0 for SKIP LOCKED.
func (r *MySQLOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Event, error) {
	q := database.GetTx(ctx, r.db)

	rows, err := q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM outbox_events
		 WHERE status = ? ORDER BY created_at LIMIT ?
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
		if err := scanEvent(rows, event, database.BinaryUUID{ID: &event.ID}); err != nil {
			return nil, database.WrapError(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError(err, "failed to read outbox events")
	}
	return events, nil
}

func (r *MySQLOutboxRepository) SaveDeliveryState(ctx context.Context, event *domain.Event) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = ?, attempts = ?, last_error = ?, delivered_at = ?, updated_at = NOW(6)
		 WHERE id = ?`,
		event.Status, event.Attempts, event.LastError, event.DeliveredAt, database.BinaryID(event.ID),
	)
	return database.WrapError(err, "failed to save outbox delivery state")
}

func (r *MySQLOutboxRepository) DeleteSettledBefore(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	return database.Purge(ctx, database.GetTx(ctx, r.db), "settled outbox events",
		` FROM outbox_events WHERE status IN (?, ?) AND updated_at < ?`, dryRun,
		domain.StatusDelivered, domain.StatusFailed, before)
}

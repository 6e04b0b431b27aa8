// Package usecase drains the outbox table into downstream collaborators.
//
// A dispatch claims a batch of pending events inside one transaction. Claimed rows are
// locked with SKIP LOCKED, so several brokers can share the table without delivering
// an event twice. Each event is handed to an EventProcessor and its delivery state is
// written back before the transaction commits.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/secretbroker/internal/database"
	"github.com/allisson/secretbroker/internal/outbox/domain"
)

// Config tunes the dispatcher.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// EventRepository persists outbox events.
type EventRepository interface {
	Enqueue(ctx context.Context, event *domain.Event) error

	// ClaimPending locks up to limit pending events, oldest first, until the
	// surrounding transaction ends.
	ClaimPending(ctx context.Context, limit int) ([]*domain.Event, error)

	SaveDeliveryState(ctx context.Context, event *domain.Event) error

	// DeleteSettledBefore removes delivered and failed events last touched before the
	// given time. With dryRun it only counts them. Pending events are never removed.
	DeleteSettledBefore(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// EventProcessor delivers a single event. A returned error counts as a failed attempt.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.Event) error
}

// Dispatcher moves outbox events to their collaborator.
type Dispatcher interface {
	// Run dispatches a batch every PollInterval until ctx is done.
	Run(ctx context.Context) error

	// DispatchBatch claims and delivers one batch, returning how many events were
	// delivered.
	DispatchBatch(ctx context.Context) (int, error)

	PurgeSettled(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error)
}

type dispatcher struct {
	config    Config
	txManager database.TxManager
	repo      EventRepository
	processor EventProcessor
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	config Config,
	txManager database.TxManager,
	repo EventRepository,
	processor EventProcessor,
	logger *slog.Logger,
) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{
		config:    config,
		txManager: txManager,
		repo:      repo,
		processor: processor,
		logger:    logger.With(slog.String("component", "outbox")),
		now:       time.Now,
	}
}

func (d *dispatcher) Run(ctx context.Context) error {
	d.logger.Info("outbox dispatcher started",
		slog.Duration("poll_interval", d.config.PollInterval),
		slog.Int("batch_size", d.config.BatchSize),
		slog.Int("max_attempts", d.config.MaxAttempts),
	)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchBatch(ctx); err != nil {
				d.logger.Error("outbox dispatch failed", slog.Any("error", err))
			}
		}
	}
}

func (d *dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	delivered := 0
	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := d.repo.ClaimPending(ctx, d.config.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			d.deliver(ctx, event)
			if event.Status == domain.StatusDelivered {
				delivered++
			}
			if err := d.repo.SaveDeliveryState(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return delivered, nil
}

func (d *dispatcher) deliver(ctx context.Context, event *domain.Event) {
	err := d.processor.Process(ctx, event)
	if err == nil {
		event.MarkDelivered(d.now().UTC())
		return
	}

	exhausted := event.MarkAttemptFailed(err, d.config.MaxAttempts)
	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.Int("attempts", event.Attempts),
		slog.Any("error", err),
	}
	if exhausted {
		d.logger.Error("outbox event parked after last attempt", attrs...)
		return
	}
	d.logger.Warn("outbox event delivery failed", attrs...)
}

func (d *dispatcher) PurgeSettled(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	return d.repo.DeleteSettledBefore(ctx, d.now().UTC().Add(-olderThan), dryRun)
}

package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	outboxRepository "github.com/allisson/secretbroker/internal/outbox/repository"
	outboxUseCase "github.com/allisson/secretbroker/internal/outbox/usecase"
)

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUseCase.EventRepository, error) {
	return c.outboxRepo.get(c.initOutboxRepository)
}

// OutboxDispatcher returns the outbox dispatcher. Events are forwarded to the logging
// service when LOGGING_SERVICE_URL is set and written to the log otherwise.
func (c *Container) OutboxDispatcher() (outboxUseCase.Dispatcher, error) {
	return c.outboxDispatcher.get(c.initOutboxDispatcher)
}

// RunWorkers runs the background workers until ctx is done: the audit dispatcher, the
// outbox worker, the settings refresher, the rate limiter cleanup and the DEK rotation
// scheduler. The first failing worker cancels the others.
func (c *Container) RunWorkers(ctx context.Context) error {
	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return fmt.Errorf("failed to get audit log use case: %w", err)
	}
	scheduler, err := c.RotationScheduler()
	if err != nil {
		return fmt.Errorf("failed to get rotation scheduler: %w", err)
	}

	var outbox outboxUseCase.Dispatcher
	if c.config.AuditSink != auditSinkLog {
		if outbox, err = c.OutboxDispatcher(); err != nil {
			return fmt.Errorf("failed to get outbox dispatcher: %w", err)
		}
	}

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start rotation scheduler: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return auditLogUseCase.Run(gctx) })
	g.Go(func() error {
		c.RuntimeConfig().Run(gctx)
		return nil
	})
	if outbox != nil {
		g.Go(func() error {
			if err := outbox.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if limiter := c.RateLimiter(); limiter != nil {
		g.Go(func() error { return limiter.Run(gctx) })
	}
	if limiter := c.TokenRateLimiter(); limiter != nil {
		g.Go(func() error { return limiter.Run(gctx) })
	}
	return g.Wait()
}

func (c *Container) initOutboxRepository() (outboxUseCase.EventRepository, error) {
	db, mysql, err := c.repositoryDB("outbox")
	if err != nil {
		return nil, err
	}
	if mysql {
		return outboxRepository.NewMySQLOutboxRepository(db), nil
	}
	return outboxRepository.NewPostgreSQLOutboxRepository(db), nil
}

func (c *Container) initOutboxDispatcher() (outboxUseCase.Dispatcher, error) {
	logger := c.Logger()

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox dispatcher: %w", err)
	}
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox dispatcher: %w", err)
	}

	var processor outboxUseCase.EventProcessor = outboxUseCase.NewLogEventProcessor(logger)
	if c.config.LoggingServiceURL != "" {
		processor = outboxUseCase.NewLoggingServiceProcessor(c.HTTPClient(), c.config.LoggingServiceURL)
	}

	dispatcherConfig := outboxUseCase.Config{
		PollInterval: c.config.OutboxInterval,
		BatchSize:    c.config.OutboxBatchSize,
		MaxAttempts:  c.config.OutboxMaxRetries,
	}
	return outboxUseCase.NewDispatcher(dispatcherConfig, txManager, outboxRepo, processor, logger), nil
}

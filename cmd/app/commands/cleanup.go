package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
	outboxUseCase "github.com/allisson/secretbroker/internal/outbox/usecase"
	secretsUseCase "github.com/allisson/secretbroker/internal/secrets/usecase"
)

const day = 24 * time.Hour

// RunCleanExpiredTokens deletes tokens that expired more than days ago.
func RunCleanExpiredTokens(
	ctx context.Context,
	tokenUseCase authUseCase.TokenUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if err := validateDays(days); err != nil {
		return err
	}
	logger.Info("cleaning expired tokens", slog.Int("days", days), slog.Bool("dry_run", dryRun))

	count, err := tokenUseCase.PurgeExpired(ctx, time.Duration(days)*day, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	outputCleanup(writer, "expired token(s)", count, days, dryRun, format)
	logger.Info("cleanup completed", slog.Int64("count", count), slog.Bool("dry_run", dryRun))
	return nil
}

// RunCleanOutboxEvents deletes delivered and failed outbox events last updated more
// than days ago.
func RunCleanOutboxEvents(
	ctx context.Context,
	outbox outboxUseCase.Dispatcher,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if err := validateDays(days); err != nil {
		return err
	}
	logger.Info("cleaning outbox events", slog.Int("days", days), slog.Bool("dry_run", dryRun))

	count, err := outbox.PurgeSettled(ctx, time.Duration(days)*day, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	outputCleanup(writer, "outbox event(s)", count, days, dryRun, format)
	logger.Info("cleanup completed", slog.Int64("count", count), slog.Bool("dry_run", dryRun))
	return nil
}

// RunCleanIdempotencyKeys deletes idempotency records past the configured TTL.
func RunCleanIdempotencyKeys(
	ctx context.Context,
	secretUseCase secretsUseCase.SecretUseCase,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning idempotency keys", slog.Bool("dry_run", dryRun))

	count, err := secretUseCase.PurgeIdempotencyKeys(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup idempotency keys: %w", err)
	}

	switch {
	case format == "json":
		writeJSON(writer, map[string]any{"count": count, "dry_run": dryRun})
	case dryRun:
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d expired idempotency key(s)\n", count)
	default:
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d expired idempotency key(s)\n", count)
	}
	logger.Info("cleanup completed", slog.Int64("count", count), slog.Bool("dry_run", dryRun))
	return nil
}

func outputCleanup(writer io.Writer, what string, count int64, days int, dryRun bool, format string) {
	switch {
	case format == "json":
		writeJSON(writer, map[string]any{
			"count":   count,
			"days":    days,
			"dry_run": dryRun,
		})
	case dryRun:
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d %s older than %d day(s)\n", count, what, days)
	default:
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d %s older than %d day(s)\n", count, what, days)
	}
}

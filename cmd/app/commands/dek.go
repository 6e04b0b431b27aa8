package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoUseCase "github.com/allisson/secretbroker/internal/crypto/usecase"
)

// RunRewrapDeks re-wraps every DEK under the active KEK in batches, so retired KEKs can
// be removed from KEKS once it reports zero remaining.
func RunRewrapDeks(
	ctx context.Context,
	envelopeUseCase cryptoUseCase.EnvelopeUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	logger.Info("starting DEK rewrap process", slog.Int("batch_size", batchSize))

	total := 0
	for {
		rewrapped, err := envelopeUseCase.RewrapDeks(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("failed to rewrap DEKs in batch: %w", err)
		}
		if rewrapped == 0 {
			break
		}

		total += rewrapped
		logger.Info("rewrapped batch of DEKs",
			slog.Int("rewrapped_in_batch", rewrapped),
			slog.Int("total_rewrapped", total),
		)
	}

	_, _ = fmt.Fprintf(writer, "Rewrapped %d DEK(s) under the active KEK\n", total)
	logger.Info("DEK rewrap process completed", slog.Int("total_rewrapped", total))
	return nil
}

// RunRotateDek rotates the active DEK of ownerID. With an empty ownerID it rotates
// every DEK older than the configured maximum age instead.
func RunRotateDek(
	ctx context.Context,
	envelopeUseCase cryptoUseCase.EnvelopeUseCase,
	logger *slog.Logger,
	writer io.Writer,
	ownerID string,
	format string,
) error {
	if ownerID == "" {
		rotated, err := envelopeUseCase.RotateExpiredDeks(ctx)
		if err != nil {
			return fmt.Errorf("failed to rotate expired DEKs: %w", err)
		}
		if format == "json" {
			writeJSON(writer, map[string]any{"rotated": rotated})
		} else {
			_, _ = fmt.Fprintf(writer, "Rotated %d expired DEK(s)\n", rotated)
		}
		logger.Info("expired DEKs rotated", slog.Int("count", rotated))
		return nil
	}

	dek, err := envelopeUseCase.RotateDek(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to rotate DEK: %w", err)
	}

	if format == "json" {
		writeJSON(writer, map[string]string{
			"dek_id":    dek.ID.String(),
			"owner_id":  dek.OwnerID,
			"algorithm": string(dek.Algorithm),
			"kek_id":    dek.KekID,
		})
	} else {
		_, _ = fmt.Fprintf(writer, "Rotated DEK for owner %s\n", dek.OwnerID)
		_, _ = fmt.Fprintf(writer, "New DEK ID: %s\n", dek.ID.String())
	}

	logger.Info("DEK rotated",
		slog.String("owner_id", dek.OwnerID),
		slog.String("dek_id", dek.ID.String()),
	)
	return nil
}

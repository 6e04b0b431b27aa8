package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RotationScheduler sweeps expired DEKs on a cron schedule.
type RotationScheduler struct {
	useCase  EnvelopeUseCase
	schedule cron.Schedule
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotationScheduler parses spec, a five field cron expression or a descriptor
// such as "@hourly" or "@every 15m".
func NewRotationScheduler(useCase EnvelopeUseCase, spec string, logger *slog.Logger) (*RotationScheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid dek rotation schedule %q: %w", spec, err)
	}
	return &RotationScheduler{
		useCase:  useCase,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start launches the scheduling loop. It returns an error if already started.
func (s *RotationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return fmt.Errorf("rotation scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, s.done)
	s.logger.Info("dek rotation scheduler started")
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *RotationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("dek rotation scheduler stopped")
}

// RunOnce performs a single sweep.
func (s *RotationScheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	rotated, err := s.useCase.RotateExpiredDeks(ctx)
	if err != nil {
		s.logger.Error("dek rotation sweep failed",
			slog.Int("rotated", rotated),
			slog.Any("error", err),
		)
		return rotated, err
	}
	if rotated > 0 {
		s.logger.Info("dek rotation sweep completed",
			slog.Int("rotated", rotated),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return rotated, nil
}

func (s *RotationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

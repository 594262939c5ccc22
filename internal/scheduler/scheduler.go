// Package scheduler runs the periodic booking sweep: stale pending bookings
// are cancelled and their seats returned to the pool, and old cancelled
// bookings are purged.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the slice of the reservation engine the scheduler drives.
type Sweeper interface {
	ReleaseStalePending(ctx context.Context) (int64, error)
	PurgeCancelled(ctx context.Context) (int64, error)
}

type Config struct {
	SweepInterval time.Duration
	PurgeInterval time.Duration
}

type Scheduler struct {
	svc    Sweeper
	logger *slog.Logger
	cfg    Config
}

func New(svc Sweeper, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = 10 * time.Minute
	}
	return &Scheduler{svc: svc, logger: logger, cfg: cfg}
}

// Run blocks until ctx is cancelled. Each tick is independent; an error on
// one tick is logged and the next tick proceeds.
func (s *Scheduler) Run(ctx context.Context) error {
	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	purge := time.NewTicker(s.cfg.PurgeInterval)
	defer purge.Stop()

	s.logger.Info("scheduler started",
		slog.Duration("sweep_interval", s.cfg.SweepInterval),
		slog.Duration("purge_interval", s.cfg.PurgeInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-sweep.C:
			s.runSweep(ctx)
		case <-purge.C:
			s.runPurge(ctx)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	n, err := s.svc.ReleaseStalePending(ctx)
	if err != nil {
		s.logger.Error("pending sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("pending bookings released", slog.Int64("count", n))
	}
}

func (s *Scheduler) runPurge(ctx context.Context) {
	n, err := s.svc.PurgeCancelled(ctx)
	if err != nil {
		s.logger.Error("cancelled purge failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("cancelled bookings purged", slog.Int64("count", n))
	}
}

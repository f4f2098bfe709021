package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/planforge/planforge-api/internal/store"
)

// RetentionSweeper periodically removes terminal job records older than the
// configured retention window. Only completed and failed jobs are eligible;
// in-flight records are never touched. A status poll for a swept job
// returns not found, which clients treat the same as an unknown ID.
type RetentionSweeper struct {
	jobs      store.JobStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewRetentionSweeper creates a sweeper that deletes terminal jobs older
// than retention, checking every interval.
func NewRetentionSweeper(
	jobs store.JobStore,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) (*RetentionSweeper, error) {
	if jobs == nil {
		return nil, &ServiceError{Operation: "create_sweeper", Message: "jobs cannot be nil"}
	}
	if retention <= 0 {
		return nil, &ServiceError{Operation: "create_sweeper", Message: "retention must be positive"}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionSweeper{
		jobs:      jobs,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "retention_sweeper"),
	}, nil
}

// Run sweeps on the configured interval until the context is cancelled.
// Call it on its own goroutine.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		"retention", s.retention,
		"interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention sweep removed terminal jobs",
			"count", deleted,
			"cutoff", cutoff)
	}
}

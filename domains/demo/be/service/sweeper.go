package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is the cadence of the background demo sweep.
const DefaultSweepInterval = 24 * time.Hour

// SweepResult totals one sweep across users.
type SweepResult struct {
	Users    int
	Reverted int
	Failed   int
}

// Sweeper periodically reverts every user that still has tracked changes.
type Sweeper struct {
	changes    ChangeRepository
	reverter   RevertRunner
	interval   time.Duration
	forceReset bool
	logger     *zap.Logger
}

// NewSweeper constructs a Sweeper. A non-positive interval selects DefaultSweepInterval.
func NewSweeper(changes ChangeRepository, reverter RevertRunner, interval time.Duration, forceReset bool, logger *zap.Logger) *Sweeper {
	if changes == nil {
		panic("change repository is required")
	}
	if reverter == nil {
		panic("reverter is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{changes: changes, reverter: reverter, interval: interval, forceReset: forceReset, logger: logger}
}

// SweepOnce reverts all pending users. A failing user does not stop the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	users, err := s.changes.PendingUsers(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list pending users: %w", err)
	}

	var result SweepResult
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		summary, err := s.reverter.Revert(ctx, Target{UserID: userID, ForceReset: s.forceReset})
		if err != nil {
			s.logger.Error("sweep demo user", zap.String("userId", userID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Users++
		result.Reverted += summary.Reverted
		result.Failed += summary.Failed
	}
	return result, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("demo sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("demo sweep failed", zap.Error(err))
				continue
			}
			s.logger.Info("demo sweep finished",
				zap.Int("users", result.Users),
				zap.Int("reverted", result.Reverted),
				zap.Int("failed", result.Failed))
		}
	}
}

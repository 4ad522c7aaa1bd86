package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// LockScheduler periodically locks scores of tournaments whose end time has passed.
type LockScheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

// StartLockScheduler registers the auto-lock job and starts it.
// An interval of zero disables the job and returns nil.
func StartLockScheduler(ctx context.Context, svc TournamentService, interval time.Duration, logger *slog.Logger) (*LockScheduler, error) {
	if interval <= 0 {
		logger.Info("tournament auto-lock disabled")
		return nil, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := svc.AutoLockExpired(ctx); err != nil {
				logger.Error("[Scheduler] auto-lock failed", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to register auto-lock job: %w", err)
	}

	sched.Start()
	logger.Info("tournament auto-lock started", slog.Duration("interval", interval))
	return &LockScheduler{sched: sched, logger: logger}, nil
}

// Stop is safe on a nil scheduler.
func (l *LockScheduler) Stop() {
	if l == nil {
		return
	}
	if err := l.sched.Shutdown(); err != nil {
		l.logger.Warn("scheduler shutdown failed", slog.Any("error", err))
	}
}

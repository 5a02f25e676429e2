// Package scheduler runs the service's periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"review-responder/internal/domain/repository"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const resetTimeout = 5 * time.Minute

// Scheduler wraps a cron runner using the standard 5-field syntax.
type Scheduler struct {
	cron   *cron.Cron
	usage  repository.UsageStore
	logger *zap.Logger
}

func NewScheduler(usage repository.UsageStore, logger *zap.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{cron: c, usage: usage, logger: logger}
}

// ScheduleUsageReset zeroes every monthly counter on expr, e.g. "0 0 1 * *"
// for midnight UTC on the first of the month.
func (s *Scheduler) ScheduleUsageReset(expr string) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()
		s.ResetUsage(ctx)
	})
	return err
}

func (s *Scheduler) ResetUsage(ctx context.Context) {
	start := time.Now()
	n, err := s.usage.ResetMonthlyUsage(ctx)
	if err != nil {
		s.logger.Error("monthly usage reset failed", zap.Error(err))
		return
	}
	s.logger.Info("monthly usage reset",
		zap.Int64("accounts", n),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

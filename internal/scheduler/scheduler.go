// Package scheduler drives recurring analytics runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stock-analytics-service/config"
	"stock-analytics-service/internal/analytics"
	"stock-analytics-service/internal/marketdata"
)

// Scheduler manages the cron tasks that keep the database current.
type Scheduler struct {
	cron   *cron.Cron
	runner *analytics.Runner
	config config.SchedulerConfig
	logger zerolog.Logger
	ctx    context.Context
}

// NewScheduler creates a Scheduler over the given runner.
func NewScheduler(ctx context.Context, runner *analytics.Runner, cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		config: cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
	}
}

// RegisterAll registers the daily and four hour tasks from the
// configured cron specs.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc(s.config.DailySpec, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if _, err := s.cron.AddFunc(s.config.FourHourSpec, s.fourHourTask); err != nil {
		return fmt.Errorf("register four hour task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Str("daily", s.config.DailySpec).
		Str("four_hour", s.config.FourHourSpec).
		Msg("scheduler started")
}

// Stop stops the scheduler, waiting for a running job to return.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunDailyNow executes the daily task immediately, for manual triggers
// at startup.
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

func (s *Scheduler) dailyTask() {
	s.runTimeframe(marketdata.TimeframeDaily)
}

func (s *Scheduler) fourHourTask() {
	s.runTimeframe(marketdata.TimeframeFourHour)
}

// runTimeframe executes one batch. The runner rejects overlapping runs,
// so a slow batch simply makes the next tick a no-op.
func (s *Scheduler) runTimeframe(tf marketdata.Timeframe) {
	summary, err := s.runner.Run(s.ctx, tf)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("scheduled run skipped")
		return
	}

	s.logger.Info().
		Str("run_id", summary.RunID).
		Str("timeframe", string(tf)).
		Int("failed", summary.SymbolsFailed).
		Int("patterns", summary.PatternsFound).
		Dur("duration", summary.Duration).
		Msg("scheduled run finished")
}

package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wedof-tools/sheetsync/pkg/errors"
)

// Clock abstracts time for the scheduler so tests can drive it with a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scheduler triggers one sync run immediately, then one per day at the
// configured local time. Wakes are derived from the previous scheduled
// instant, so a run that overruns its slot fires the missed run immediately
// instead of skipping it.
type Scheduler struct {
	orch      *Orchestrator
	schedule  cron.Schedule
	timeOfDay string
	clock     Clock
	logger    *zap.Logger
}

// NewScheduler builds a daily scheduler from an HH:MM time of day.
func NewScheduler(orch *Orchestrator, timeOfDay string, log *zap.Logger) (*Scheduler, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("invalid schedule time %q, expected HH:MM", timeOfDay))
	}

	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build schedule")
	}

	return &Scheduler{
		orch:      orch,
		schedule:  schedule,
		timeOfDay: timeOfDay,
		clock:     systemClock{},
		logger:    log.With(zap.String("component", "scheduler")),
	}, nil
}

// WithClock replaces the scheduler's clock. Test hook.
func (s *Scheduler) WithClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

// NextWake returns the first scheduled instant strictly after the given time.
func (s *Scheduler) NextWake(after time.Time) time.Time {
	return s.schedule.Next(after)
}

// RunOnce executes a single sync run and returns its summary.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunSummary, error) {
	return s.orch.Run(ctx)
}

// Run loops forever: an immediate first run, then one run per scheduled
// instant, until the context is cancelled. Run summaries are logged;
// endpoint failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.String("daily_time", s.timeOfDay),
		zap.String("spreadsheet", s.orch.SpreadsheetURL()))

	if err := s.runAndLog(ctx); err != nil {
		return err
	}

	next := s.schedule.Next(s.clock.Now())
	for {
		wait := next.Sub(s.clock.Now())
		if wait > 0 {
			s.logger.Info("next sync scheduled", zap.Time("at", next))
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return ctx.Err()
			case <-s.clock.After(wait):
			}
		} else {
			s.logger.Warn("previous run overran its slot, syncing now",
				zap.Time("scheduled", next))
		}

		if err := s.runAndLog(ctx); err != nil {
			return err
		}
		next = s.schedule.Next(next)
	}
}

// runAndLog executes one run and surfaces only context cancellation as an
// error.
func (s *Scheduler) runAndLog(ctx context.Context) error {
	summary, err := s.orch.Run(ctx)
	if err != nil {
		s.logger.Info("scheduler stopping", zap.Error(err))
		return err
	}

	if summary.Failed() > 0 {
		s.logger.Warn("sync run had failures",
			zap.String("run_id", summary.RunID),
			zap.String("status", summary.Status()),
			zap.Strings("errors", summary.Errors()))
	}
	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"storage-sync/internal/logger"
	"storage-sync/internal/service"

	"github.com/robfig/cron/v3"
)

// PassRunner runs a reconciliation pass when one is due.
type PassRunner interface {
	RunDuePass(ctx context.Context) (*service.PassResult, error)
}

type Scheduler struct {
	cron    *cron.Cron
	runner  PassRunner
	spec    string
	timeout time.Duration
}

// NewScheduler creates a scheduler that checks for due passes on the given
// cron spec. Specs accept an optional leading seconds field.
func NewScheduler(runner PassRunner, spec string, timeout time.Duration) *Scheduler {
	cronLogger := logger.NewCronAdapter()
	c := cron.New(
		cron.WithParser(cron.NewParser(
			cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return &Scheduler{
		cron:    c,
		runner:  runner,
		spec:    spec,
		timeout: timeout,
	}
}

func (s *Scheduler) Start() error {
	logger.Info().Str("cron_spec", s.spec).Msg("Starting scheduler")

	if _, err := s.cron.AddFunc(s.spec, s.runDue); err != nil {
		return fmt.Errorf("schedule reconciliation job: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	logger.Info().Msg("Stopping scheduler")
	<-s.cron.Stop().Done()
	logger.Info().Msg("Scheduler stopped")
}

// RunNow runs the due-pass check immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (*service.PassResult, error) {
	return s.runner.RunDuePass(ctx)
}

// GetScheduledJobs returns information about scheduled jobs
func (s *Scheduler) GetScheduledJobs() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runDue() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.RunDuePass(ctx); err != nil {
		logger.Error().Err(err).Msg("Scheduled reconciliation pass failed")
	}
}

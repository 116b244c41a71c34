package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one cleaner run.
type Job func(ctx context.Context) error

// CleanerScheduler runs the cleaner on a cron schedule when the binary is
// started in daemon mode instead of from the system crontab.
type CleanerScheduler struct {
	cronEngine *cron.Cron
	job        Job
	logger     logrus.FieldLogger
	cronSpec   string
	timeout    time.Duration
}

func NewCleanerScheduler(job Job, logger logrus.FieldLogger, cronSpec string, timeout time.Duration) *CleanerScheduler {
	return &CleanerScheduler{
		// A tick that fires while a run is still active is skipped.
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		job:      job,
		logger:   logger,
		cronSpec: cronSpec,
		timeout:  timeout,
	}
}

func (s *CleanerScheduler) Start() error {
	s.logger.Infof("Starting spread cleaner scheduler with spec %q", s.cronSpec)

	_, err := s.cronEngine.AddFunc(s.cronSpec, s.runOnce)
	if err != nil {
		return fmt.Errorf("could not add spread cleaner cron job: %w", err)
	}

	s.cronEngine.Start()
	return nil
}

func (s *CleanerScheduler) runOnce() {
	s.logger.Info("Cron job triggered for spread cleaner.")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.job(ctx); err != nil {
		s.logger.WithError(err).Error("Spread cleaner run failed")
	}
}

func (s *CleanerScheduler) Stop() {
	s.logger.Info("Stopping spread cleaner scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Spread cleaner scheduler gracefully stopped.")
}

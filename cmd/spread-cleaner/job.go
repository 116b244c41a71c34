package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"spread_expire/internal/app"
	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/domain/policy"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/infra/database"
	"spread_expire/internal/infra/metrics"
)

const metricsJobName = "spread_cleaner"

// cleanerJob is one transactional cleaner run. Nothing is kept unless commit
// is set.
type cleanerJob struct {
	db          *sql.DB
	policies    policy.Set
	spreads     []spread.Code
	days        int
	commit      bool
	logger      logrus.FieldLogger
	metrics     *metrics.Recorder
	pushgateway string
}

func newEngine(tx database.DBTX, policies policy.Set, logger logrus.FieldLogger, rec *metrics.Recorder) *app.ExpirationService {
	return app.NewExpirationService(
		database.NewPostgresSpreadExpireRepository(tx),
		database.NewPostgresNotificationRepository(tx),
		database.NewPostgresAccountRepository(tx),
		database.NewPostgresMailQueue(tx),
		policies,
		logger,
		app.WithMetrics(rec),
	)
}

func (j *cleanerJob) Run(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	engine := newEngine(tx, j.policies, j.logger, j.metrics)
	cleaner := app.NewCleanerService(engine, database.NewSavepoint(tx), j.logger)

	opts := app.RunOptions{
		Spreads: j.spreads,
		Cutoff:  calendar.AddDays(time.Now(), -j.days),
	}
	report, err := cleaner.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("cleaner run aborted: %w", err)
	}

	log := j.logger.WithField("run_id", report.RunID)
	if rerr := report.Err(); rerr != nil {
		log.WithError(rerr).Warnf("%d entities could not be processed", report.Failed)
	}

	if !j.commit {
		log.Info("Dry run, rolling back. Use --commit to keep the changes.")
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaner run: %w", err)
	}
	log.Info("Changes committed")

	if err := j.metrics.Push(ctx, j.pushgateway, metricsJobName); err != nil {
		log.WithError(err).Warn("Could not push metrics")
	}
	return nil
}

// inTx runs fn on a fresh transaction and commits only when commit is set.
func inTx(ctx context.Context, db *sql.DB, commit bool, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

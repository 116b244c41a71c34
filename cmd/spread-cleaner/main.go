package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"spread_expire/internal/domain/policy"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/infra/config"
	idb "spread_expire/internal/infra/database"
	"spread_expire/internal/infra/logger"
	"spread_expire/internal/infra/metrics"
	"spread_expire/internal/infra/scheduler"
)

type adminDeps struct {
	policies policy.Set
	codes    spread.CodeRepository
	logger   logrus.FieldLogger
}

func main() {
	os.Exit(run())
}

func run() int {
	var spreads spreadList
	flag.Var(&spreads, "spread", "spread to clean up, may be repeated (default: all account spreads)")
	days := flag.Int("days", 0, "remove spreads that expired more than this many days ago")
	commit := flag.Bool("commit", false, "commit the changes (default is a dry run that rolls back)")
	daemon := flag.Bool("daemon", false, "stay running and clean up on CLEANER_CRON_SPEC")
	migrateUp := flag.Bool("migrate", false, "apply database migrations before running")
	policyPath := flag.String("config", "", "escalation policy file (overrides SPREAD_EXPIRE_POLICY_FILE)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [command]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "\n"+adminUsage)
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		return 1
	}
	if *policyPath != "" {
		cfg.PolicyFile = *policyPath
	}
	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"policy_file": cfg.PolicyFile,
		"commit":      *commit,
	}).Info("Spread cleaner starting")

	if *days < 0 {
		log.Errorf("--days must not be negative, got %d", *days)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Error("Could not connect to database")
		return 1
	}
	defer db.Close()

	if *migrateUp {
		if err := idb.MigrateUp(db); err != nil {
			log.WithError(err).Error("Could not apply migrations")
			return 1
		}
		log.Info("Database migrations applied")
	}

	codes := idb.NewPostgresSpreadCodeRepository(db)
	pf, err := config.ReadPolicyFile(cfg.PolicyFile)
	if err != nil {
		log.WithError(err).Error("Could not load escalation policies")
		return 1
	}
	policies, err := pf.Resolve(ctx, codes)
	if err != nil {
		log.WithError(err).Error("Could not load escalation policies")
		return 1
	}
	log.Infof("Loaded escalation policies for %d spread(s)", len(policies))

	if args := flag.Args(); len(args) > 0 {
		cmd, err := parseAdminCommand(args)
		if err != nil {
			log.WithError(err).Error("Invalid command")
			return 1
		}
		deps := adminDeps{policies: policies, codes: codes, logger: log}
		if err := runAdmin(ctx, db, deps, cmd, *commit, os.Stdout); err != nil {
			log.WithError(err).WithField("command", cmd.name).Error("Command failed")
			return 1
		}
		if cmd.mutates() && !*commit {
			log.Info("Dry run, rolled back. Use --commit to keep the change.")
		}
		return 0
	}

	targets, err := resolveSpreads(ctx, codes, spreads, cfg.ExcludedSpreads)
	if err != nil {
		log.WithError(err).Error("Could not resolve spreads")
		return 1
	}

	job := &cleanerJob{
		db:          db,
		policies:    policies,
		spreads:     targets,
		days:        *days,
		commit:      *commit,
		logger:      log,
		metrics:     metrics.NewRecorder(),
		pushgateway: cfg.PushgatewayURL,
	}

	if !*daemon {
		runCtx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
		if err := job.Run(runCtx); err != nil {
			log.WithError(err).Error("Spread cleaner run failed")
			return 1
		}
		return 0
	}

	warnUncommittedDaemon(log, *daemon, *commit)
	sched := scheduler.NewCleanerScheduler(job.Run, log, cfg.CronSpec, cfg.JobTimeout)
	if err := sched.Start(); err != nil {
		log.WithError(err).Error("Could not start scheduler")
		return 1
	}
	<-ctx.Done()
	log.Info("Shutting down spread cleaner...")
	sched.Stop()
	return 0
}

// warnUncommittedDaemon reports whether daemon mode will roll back every run.
func warnUncommittedDaemon(log logrus.FieldLogger, daemon, commit bool) bool {
	if !daemon || commit {
		return false
	}
	log.Warn("Daemon mode without --commit: every scheduled run is a dry run and rolls back")
	return true
}

// Package main is the entry point of the FeynLearn worker: the scheduler that
// sends streak reminders and weekly digests and repairs progression drift.
//
// Usage:
//
//	worker              run the scheduler until SIGINT/SIGTERM
//	worker <job-name>   run one job immediately and exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feynlearn/feynlearn-hub/config"
	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/redis"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/scheduler"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/scheduler/jobs"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer log.Sync()

	log.Info("starting FeynLearn worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("day_zone", cfg.Progression.DayZoneName),
	)

	if !cfg.Scheduler.Enabled && len(args) == 0 {
		log.Warn("scheduler is disabled, nothing to do")
		return nil
	}

	clock := timeutil.SystemClock{}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Stores
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := persistence.Open(ctx, storeOptions(cfg, log))
	if err != nil {
		return err
	}
	defer stores.Close()

	if stores.DB == nil {
		log.Warn("worker is running against the in-memory store, jobs see no API data")
	}

	env := command.Env{
		Clock:   clock,
		DayZone: cfg.Progression.DayZone,
		Log:     log,
	}
	recalc := command.NewRecalculateStatsHandler(stores.Progression, env)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Scheduler and jobs
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Clock = clock
	schedCfg.LockTTL = cfg.Scheduler.LockTTL
	if stores.Cache != nil {
		schedCfg.Locker = stores.Cache
	}
	sched := scheduler.NewScheduler(schedCfg)

	if err := registerJobs(sched, cfg, stores, recalc, clock, log); err != nil {
		return err
	}

	if len(args) > 0 {
		return runOnce(ctx, sched, args[0], log)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("FeynLearn worker is running", logger.String("backend", stores.Backend()))

	<-ctx.Done()
	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			log.Error("failed to stop scheduler", logger.Err(err))
			return err
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		return fmt.Errorf("scheduler did not stop within %s", cfg.App.ShutdownTimeout)
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	stores *persistence.Stores,
	recalc jobs.Recalculator,
	clock timeutil.Clock,
	log *logger.Logger,
) error {
	zone := cfg.Progression.DayZone

	var claimer jobs.ReminderClaimer
	if stores.Cache != nil {
		claimer = redisstore.NewReminderLedger(stores.Cache, zone)
	}

	reminders := jobs.NewStreakReminderJob(stores.Profiles, stores.Notifications, claimer, clock, zone, log,
		jobs.StreakReminderConfig{
			Enabled:     cfg.Features.IsEnabled(config.FeatureStreakReminders, nil),
			Concurrency: cfg.Scheduler.JobConcurrency,
			Timeout:     cfg.Scheduler.JobTimeout,
		})
	if err := sched.Register(reminders, scheduler.NewIntervalSchedule(cfg.Scheduler.StreakReminderInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", reminders.Name(), err)
	}

	digestCron, err := scheduler.ParseCronExpression(cfg.Scheduler.WeeklyDigestCron)
	if err != nil {
		return fmt.Errorf("WEEKLY_DIGEST_CRON: %w", err)
	}
	digestCfg := jobs.DefaultWeeklyDigestConfig()
	digestCfg.Enabled = cfg.Features.IsEnabled(config.FeatureWeeklyDigest, nil)
	digestCfg.Concurrency = cfg.Scheduler.JobConcurrency
	digestCfg.Timeout = cfg.Scheduler.JobTimeout
	digest := jobs.NewWeeklyDigestJob(stores.Profiles, stores.Sessions, stores.Notifications, clock, log, digestCfg)
	if err := sched.Register(digest, digestCron); err != nil {
		return fmt.Errorf("failed to register %s: %w", digest.Name(), err)
	}

	repairCron, err := scheduler.ParseCronExpression(cfg.Scheduler.RepairStatsCron)
	if err != nil {
		return fmt.Errorf("REPAIR_STATS_CRON: %w", err)
	}
	repair := jobs.NewRepairStatsJob(stores.Profiles, recalc, clock, log, jobs.RepairStatsConfig{
		Concurrency: cfg.Scheduler.JobConcurrency,
		Timeout:     cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(repair, repairCron); err != nil {
		return fmt.Errorf("failed to register %s: %w", repair.Name(), err)
	}

	return nil
}

func runOnce(ctx context.Context, sched *scheduler.Scheduler, name string, log *logger.Logger) error {
	log.Info("running job once", logger.String("job", name))

	result, err := sched.RunNow(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}

	log.Info("job finished",
		logger.String("job", name),
		logger.Duration("duration", result.Duration),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Development = cfg.Observability.LogFormat == "console"
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name+"-worker"))
}

func storeOptions(cfg *config.Config, log *logger.Logger) persistence.Options {
	pg := postgres.DefaultConfig(cfg.Database.URL)
	pg.MaxConns = int32(cfg.Database.MaxConns)
	pg.MinConns = int32(cfg.Database.MinConns)
	pg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	rc := redisstore.DefaultConfig(cfg.Redis.RedisURL())
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.KeyPrefix = cfg.Redis.KeyPrefix

	return persistence.Options{
		Postgres:      pg,
		AutoMigrate:   cfg.Database.AutoMigrate,
		Redis:         rc,
		RedisOptional: !cfg.IsProduction(),
		Logger:        log,
	}
}

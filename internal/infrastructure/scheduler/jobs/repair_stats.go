package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPAIR STATS JOB
// Recomputes every profile from its completed history. Processed counts
// the profiles whose stored totals had drifted.
// ══════════════════════════════════════════════════════════════════════════════

// RepairStatsConfig contains configuration for the job.
type RepairStatsConfig struct {
	Concurrency int
	Timeout     time.Duration
}

// DefaultRepairStatsConfig returns sensible defaults.
func DefaultRepairStatsConfig() RepairStatsConfig {
	return RepairStatsConfig{
		Concurrency: 4,
		Timeout:     30 * time.Minute,
	}
}

// Recalculator is the application handler the job drives.
type Recalculator interface {
	Handle(ctx context.Context, cmd command.RecalculateStatsCommand) (*command.RecalculateStatsResult, error)
}

// RepairStatsJob repairs progression drift.
type RepairStatsJob struct {
	profiles profile.Repository
	recalc   Recalculator
	clock    timeutil.Clock
	log      *logger.Logger
	config   RepairStatsConfig
	lastRun
}

// NewRepairStatsJob creates the job.
func NewRepairStatsJob(profiles profile.Repository, recalc Recalculator, clock timeutil.Clock, log *logger.Logger, config RepairStatsConfig) *RepairStatsJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RepairStatsJob{
		profiles: profiles,
		recalc:   recalc,
		clock:    clock,
		log:      log.With(logger.Component("repair_stats")),
		config:   config,
	}
}

// Name returns the job name.
func (j *RepairStatsJob) Name() string { return "repair_stats" }

// Description returns the job description.
func (j *RepairStatsJob) Description() string {
	return "Recomputes xp, level and totals from session history"
}

// Run executes the job.
func (j *RepairStatsJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	rec := &statsRecorder{stats: RunStats{StartedAt: j.clock.Now()}}

	all, err := j.profiles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	rec.stats.Total = len(all)

	err = forEachProfile(ctx, all, j.config.Concurrency, func(ctx context.Context, p *profile.Profile) {
		res, err := j.recalc.Handle(ctx, command.RecalculateStatsCommand{UserID: p.UID})
		if err != nil {
			rec.failed()
			j.log.Error("failed to recalculate", logger.UserID(p.UID), logger.Err(err))
			return
		}
		if !res.Drifted {
			rec.skipped()
			return
		}
		rec.processed()
		j.log.Info("repaired drifted profile",
			logger.UserID(p.UID),
			logger.Int("xp", res.Profile.XP),
			logger.Int("total_sessions", res.Profile.TotalSessions),
		)
	})

	stats := rec.finish(j.clock.Now())
	j.v.Store(stats)
	j.log.Info("stats repair finished",
		logger.Int("profiles", stats.Total),
		logger.Int("repaired", stats.Processed),
		logger.Int("failed", stats.Failed),
	)
	return err
}

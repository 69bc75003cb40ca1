package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REMINDER JOB
// Users whose last active day was yesterday still have today to keep the
// streak. Each of them gets at most one reminder per calendar day.
// ══════════════════════════════════════════════════════════════════════════════

// ReminderClaimer grants the single reminder of a user for a day.
type ReminderClaimer interface {
	Claim(ctx context.Context, uid string, now time.Time) (bool, error)
}

// StreakReminderConfig contains configuration for the job.
type StreakReminderConfig struct {
	Enabled     bool
	Concurrency int
	Timeout     time.Duration
}

// DefaultStreakReminderConfig returns sensible defaults.
func DefaultStreakReminderConfig() StreakReminderConfig {
	return StreakReminderConfig{
		Enabled:     true,
		Concurrency: 8,
		Timeout:     5 * time.Minute,
	}
}

// StreakReminderJob sends streak reminders.
type StreakReminderJob struct {
	profiles      profile.Repository
	notifications notification.Repository
	claimer       ReminderClaimer
	clock         timeutil.Clock
	zone          *time.Location
	log           *logger.Logger
	config        StreakReminderConfig
	lastRun
}

// NewStreakReminderJob creates the job. A nil claimer uses an in-process ledger.
func NewStreakReminderJob(
	profiles profile.Repository,
	notifications notification.Repository,
	claimer ReminderClaimer,
	clock timeutil.Clock,
	zone *time.Location,
	log *logger.Logger,
	config StreakReminderConfig,
) *StreakReminderJob {
	if claimer == nil {
		claimer = NewLocalClaimer(zone)
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if zone == nil {
		zone = timeutil.DefaultZone
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreakReminderJob{
		profiles:      profiles,
		notifications: notifications,
		claimer:       claimer,
		clock:         clock,
		zone:          zone,
		log:           log.With(logger.Component("streak_reminder")),
		config:        config,
	}
}

// Name returns the job name.
func (j *StreakReminderJob) Name() string { return "streak_reminder" }

// Description returns the job description.
func (j *StreakReminderJob) Description() string {
	return "Reminds users whose streak ends tonight"
}

// Run executes the job.
func (j *StreakReminderJob) Run(ctx context.Context) error {
	if !j.config.Enabled {
		j.log.Info("streak reminders are disabled")
		return nil
	}
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := j.clock.Now()
	rec := &statsRecorder{stats: RunStats{StartedAt: now}}

	all, err := j.profiles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	var eligible []*profile.Profile
	for _, p := range all {
		if p.Notifications.StreakReminders && p.IsStreakAtRisk(now, j.zone) {
			eligible = append(eligible, p)
		}
	}
	rec.stats.Total = len(eligible)

	err = forEachProfile(ctx, eligible, j.config.Concurrency, func(ctx context.Context, p *profile.Profile) {
		j.remind(ctx, p, now, rec)
	})

	stats := rec.finish(j.clock.Now())
	j.v.Store(stats)
	j.log.Info("streak reminders sent",
		logger.Int("eligible", stats.Total),
		logger.Int("sent", stats.Processed),
		logger.Int("skipped", stats.Skipped),
		logger.Int("failed", stats.Failed),
	)
	return err
}

func (j *StreakReminderJob) remind(ctx context.Context, p *profile.Profile, now time.Time, rec *statsRecorder) {
	ok, err := j.claimer.Claim(ctx, p.UID, now)
	if err != nil {
		rec.failed()
		j.log.Warn("failed to claim reminder", logger.UserID(p.UID), logger.Err(err))
		return
	}
	if !ok {
		rec.skipped()
		return
	}

	n, err := notification.StreakReminder(p.UID, p.Streak, now)
	if err == nil {
		err = j.notifications.Create(ctx, n)
	}
	if err != nil {
		rec.failed()
		j.log.Error("failed to create reminder", logger.UserID(p.UID), logger.Err(err))
		return
	}
	rec.processed()
}

// ─────────────────────────────────────────────────────────────────────────────
// In-process claimer
// ─────────────────────────────────────────────────────────────────────────────

// LocalClaimer is a ReminderClaimer for a single worker process.
type LocalClaimer struct {
	mu      sync.Mutex
	zone    *time.Location
	claimed map[string]string // uid -> day
}

// NewLocalClaimer creates an in-process claimer.
func NewLocalClaimer(zone *time.Location) *LocalClaimer {
	if zone == nil {
		zone = timeutil.DefaultZone
	}
	return &LocalClaimer{zone: zone, claimed: make(map[string]string)}
}

// Claim reports true the first time uid is seen on now's calendar day.
func (c *LocalClaimer) Claim(_ context.Context, uid string, now time.Time) (bool, error) {
	day := timeutil.FormatDate(now, c.zone)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[uid] == day {
		return false, nil
	}
	c.claimed[uid] = day
	return true, nil
}

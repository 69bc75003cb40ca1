package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY DIGEST JOB
// Summarizes the last 7 days of completed sessions for users who opted in.
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyDigestConfig contains configuration for the job.
type WeeklyDigestConfig struct {
	Enabled     bool
	Concurrency int
	Timeout     time.Duration
	Lookback    time.Duration
}

// DefaultWeeklyDigestConfig returns sensible defaults.
func DefaultWeeklyDigestConfig() WeeklyDigestConfig {
	return WeeklyDigestConfig{
		Enabled:     true,
		Concurrency: 8,
		Timeout:     10 * time.Minute,
		Lookback:    7 * 24 * time.Hour,
	}
}

// WeeklyDigestJob sends the weekly digest.
type WeeklyDigestJob struct {
	profiles      profile.Repository
	sessions      session.Repository
	notifications notification.Repository
	clock         timeutil.Clock
	log           *logger.Logger
	config        WeeklyDigestConfig
	lastRun
}

// NewWeeklyDigestJob creates the job.
func NewWeeklyDigestJob(
	profiles profile.Repository,
	sessions session.Repository,
	notifications notification.Repository,
	clock timeutil.Clock,
	log *logger.Logger,
	config WeeklyDigestConfig,
) *WeeklyDigestJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.Lookback <= 0 {
		config.Lookback = 7 * 24 * time.Hour
	}
	return &WeeklyDigestJob{
		profiles:      profiles,
		sessions:      sessions,
		notifications: notifications,
		clock:         clock,
		log:           log.With(logger.Component("weekly_digest")),
		config:        config,
	}
}

// Name returns the job name.
func (j *WeeklyDigestJob) Name() string { return "weekly_digest" }

// Description returns the job description.
func (j *WeeklyDigestJob) Description() string {
	return "Sends the weekly learning summary"
}

// Run executes the job.
func (j *WeeklyDigestJob) Run(ctx context.Context) error {
	if !j.config.Enabled {
		j.log.Info("weekly digest is disabled")
		return nil
	}
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := j.clock.Now()
	since := now.Add(-j.config.Lookback)
	rec := &statsRecorder{stats: RunStats{StartedAt: now}}

	all, err := j.profiles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	var eligible []*profile.Profile
	for _, p := range all {
		if p.Notifications.WeeklyDigest {
			eligible = append(eligible, p)
		}
	}
	rec.stats.Total = len(eligible)

	err = forEachProfile(ctx, eligible, j.config.Concurrency, func(ctx context.Context, p *profile.Profile) {
		if err := j.send(ctx, p, since, now); err != nil {
			rec.failed()
			j.log.Error("failed to send digest", logger.UserID(p.UID), logger.Err(err))
			return
		}
		rec.processed()
	})

	stats := rec.finish(j.clock.Now())
	j.v.Store(stats)
	j.log.Info("weekly digests sent",
		logger.Int("eligible", stats.Total),
		logger.Int("sent", stats.Processed),
		logger.Int("failed", stats.Failed),
	)
	return err
}

func (j *WeeklyDigestJob) send(ctx context.Context, p *profile.Profile, since, now time.Time) error {
	count, xp, err := j.sessions.CountCompletedSince(ctx, p.UID, since)
	if err != nil {
		return err
	}
	n, err := notification.WeeklyDigest(p.UID, notification.Digest{
		Sessions: count,
		XP:       xp,
		Level:    p.Level,
		Streak:   p.Streak,
	}, now)
	if err != nil {
		return err
	}
	return j.notifications.Create(ctx, n)
}

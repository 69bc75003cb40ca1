// Package jobs contains the scheduled jobs of FeynLearn Hub.
package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// RunStats summarizes one job run.
type RunStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Total       int
	Processed   int
	Skipped     int
	Failed      int
}

// statsRecorder accumulates RunStats from concurrent workers.
type statsRecorder struct {
	mu    sync.Mutex
	stats RunStats
}

func (r *statsRecorder) processed() { r.mu.Lock(); r.stats.Processed++; r.mu.Unlock() }
func (r *statsRecorder) skipped()   { r.mu.Lock(); r.stats.Skipped++; r.mu.Unlock() }
func (r *statsRecorder) failed()    { r.mu.Lock(); r.stats.Failed++; r.mu.Unlock() }

func (r *statsRecorder) finish(now time.Time) *RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.CompletedAt = now
	s.Duration = now.Sub(s.StartedAt)
	return &s
}

// lastRun stores the stats of the previous run.
type lastRun struct {
	v atomic.Pointer[RunStats]
}

// LastRunStats returns the stats of the previous run, or nil.
func (l *lastRun) LastRunStats() *RunStats {
	return l.v.Load()
}

// forEachProfile runs fn over profiles with bounded concurrency. fn errors
// are reported by fn itself and never stop the sweep. It stops early only
// when ctx is done.
func forEachProfile(ctx context.Context, profiles []*profile.Profile, concurrency int, fn func(ctx context.Context, p *profile.Profile)) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

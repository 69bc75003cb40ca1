package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

type funcJob struct {
	name  string
	runs  atomic.Int32
	runFn func(ctx context.Context) error
}

func (j *funcJob) Name() string        { return j.name }
func (j *funcJob) Description() string { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.runFn != nil {
		return j.runFn(ctx)
	}
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, resource, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[resource] {
		return nil, false, nil
	}
	l.held[resource] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, resource)
		l.released = append(l.released, resource)
		return nil
	}, true, nil
}

func newTestScheduler(locker Locker) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:       logger.Nop(),
		Locker:       locker,
		TickInterval: 5 * time.Millisecond,
	})
}

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{EveryHour, false},
		{EveryDayAt0330, false},
		{EveryMondayAt0900, false},
		{"*/15 9-17 * * 1-5", false},
		{"0,30 * * * *", false},
		{"* * * *", true},
		{"60 * * * *", true},
		{"*/0 * * * *", true},
		{"5-2 * * * *", true},
		{"a * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpression_Next(t *testing.T) {
	// Wednesday
	from := time.Date(2024, 6, 5, 10, 17, 42, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 6, 5, 11, 0, 0, 0, time.UTC),
		MustParseCronExpression(EveryHour).Next(from))
	assert.Equal(t, time.Date(2024, 6, 6, 3, 30, 0, 0, time.UTC),
		MustParseCronExpression(EveryDayAt0330).Next(from))
	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		MustParseCronExpression(EveryMondayAt0900).Next(from))

	exact := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, exact.Add(7*24*time.Hour), MustParseCronExpression(EveryMondayAt0900).Next(exact))

	assert.Panics(t, func() { MustParseCronExpression("bad") })
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(nil)
	job := &funcJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
}

func TestScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(nil)

	boom := errors.New("boom")
	require.NoError(t, s.Register(&funcJob{name: "ok"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "fail", runFn: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "panic", runFn: func(context.Context) error { panic("oops") }}, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(ctx, "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = s.RunNow(ctx, "fail")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(ctx, "panic")
	assert.ErrorIs(t, err, ErrJobPanic)

	_, err = s.RunNow(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	snap := s.GetMetrics().Snapshot()
	assert.EqualValues(t, 3, snap.TotalExecutions)
	assert.EqualValues(t, 2, snap.TotalFailures)
	assert.Len(t, s.GetHistory(0), 3)
	assert.Len(t, s.GetHistory(1), 1)
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	locker := &fakeLocker{held: map[string]bool{"job:sweep": true}}
	s := newTestScheduler(locker)
	job := &funcJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(ctx, "sweep")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, job.runs.Load())

	delete(locker.held, "job:sweep")
	res, err = s.RunNow(ctx, "sweep")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, 1, job.runs.Load())
	assert.Equal(t, []string{"job:sweep"}, locker.released)
}

func TestScheduler_StartRunsDueJobs(t *testing.T) {
	s := newTestScheduler(nil)
	job := &funcJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := newTestScheduler(nil)
	started := make(chan struct{})
	var once sync.Once
	job := &funcJob{name: "long", runFn: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	<-started
	require.NoError(t, s.Stop())
	assert.EqualValues(t, 1, job.runs.Load())
}

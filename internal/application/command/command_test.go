package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/memory"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(id command.Identity) (string, error) { return "token-" + id.UserID, nil }

type fixture struct {
	store *memory.Store
	clock *timeutil.FixedClock
	bus   *recorder
	env   command.Env

	ensure   *command.EnsureProfileHandler
	checkIn  *command.CheckInHandler
	complete *command.CompleteSessionHandler
	create   *command.CreateSessionHandler
	recalc   *command.RecalculateStatsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		clock: timeutil.NewFixedClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)),
		bus:   &recorder{},
	}
	f.env = command.Env{Clock: f.clock, DayZone: time.UTC, Publisher: f.bus}
	f.checkIn = command.NewCheckInHandler(f.store, f.env)
	f.ensure = command.NewEnsureProfileHandler(f.store.Profiles(), f.checkIn, f.env)
	f.complete = command.NewCompleteSessionHandler(f.store, f.env)
	f.create = command.NewCreateSessionHandler(f.store.Sessions(), f.env)
	f.recalc = command.NewRecalculateStatsHandler(f.store, f.env)
	return f
}

func (f *fixture) provision(t *testing.T, uid string) *profile.Profile {
	t.Helper()
	res, err := f.ensure.Handle(context.Background(), command.EnsureProfileCommand{UserID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return res.Profile
}

func (f *fixture) startSession(t *testing.T, uid string) *session.Session {
	t.Helper()
	s, err := f.create.Handle(context.Background(), command.CreateSessionCommand{
		UserID: uid, Topic: "Recursion", Subject: "Computer Science",
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) profile(t *testing.T, uid string) *profile.Profile {
	t.Helper()
	p, err := f.store.Profiles().GetByUID(context.Background(), uid)
	require.NoError(t, err)
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Ensure profile
// ─────────────────────────────────────────────────────────────────────────────

func TestEnsureProfile_CreatesOnceWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ensure.Handle(ctx, command.EnsureProfileCommand{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, profile.DefaultName, res.Profile.Name)
	assert.Equal(t, 1, res.Profile.Level)
	assert.Zero(t, res.Profile.Streak)
	assert.Equal(t, []shared.EventType{shared.EventProfileProvisioned}, f.bus.types())

	again, err := f.ensure.Handle(ctx, command.EnsureProfileCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Len(t, f.bus.types(), 1)
}

func TestEnsureProfile_DailyCheckOnExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	res, err := f.ensure.Handle(ctx, command.EnsureProfileCommand{UserID: "u1", DailyCheck: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Profile.Streak)
	assert.Equal(t, f.clock.Now(), res.Profile.LastActiveDate)

	f.clock.Advance(24 * time.Hour)
	res, err = f.ensure.Handle(ctx, command.EnsureProfileCommand{UserID: "u1", DailyCheck: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profile.Streak)
}

func TestEnsureProfile_RejectsEmptyUID(t *testing.T) {
	f := newFixture(t)
	_, err := f.ensure.Handle(context.Background(), command.EnsureProfileCommand{UserID: " "})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Check-in
// ─────────────────────────────────────────────────────────────────────────────

func TestCheckIn_StreakLostAfterGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	for i := 0; i < 3; i++ {
		_, err := f.checkIn.Handle(ctx, command.CheckInCommand{UserID: "u1"})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, 3, f.profile(t, "u1").Streak)
	f.bus.reset()

	f.clock.Advance(48 * time.Hour)
	res, err := f.checkIn.Handle(ctx, command.CheckInCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, []progression.Event{progression.StreakLost{Previous: 3}}, res.Events)
	assert.Equal(t, []shared.EventType{shared.EventStreakLost}, f.bus.types())
}

func TestCheckIn_SameDayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	first, err := f.checkIn.Handle(ctx, command.CheckInCommand{UserID: "u1"})
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	second, err := f.checkIn.Handle(ctx, command.CheckInCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, first.Streak, second.Streak)
	assert.Empty(t, second.Events)
}

func TestCheckIn_MissingProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkIn.Handle(context.Background(), command.CheckInCommand{UserID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Complete session
// ─────────────────────────────────────────────────────────────────────────────

func TestCompleteSession_AppliesResultAndEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")
	f.bus.reset()

	res, err := f.complete.Handle(ctx, command.CompleteSessionCommand{
		UserID: "u1", SessionID: s.ID, Score: 85, XPEarned: 510,
	})
	require.NoError(t, err)

	assert.Equal(t, session.StatusCompleted, res.Session.Status)
	assert.Equal(t, 510, res.Profile.XP)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, 1, res.Profile.TotalSessions)
	assert.Equal(t, 85, res.Profile.TotalPoints)
	assert.Equal(t, 1, res.Profile.Streak)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, []progression.Event{
		progression.SessionMilestone{Sessions: 1},
		progression.LevelUp{Level: 2},
		progression.XPMilestone{Threshold: 100},
	}, res.Events)
	assert.Equal(t, []shared.EventType{
		shared.EventSessionCompleted,
		shared.EventSessionMilestone,
		shared.EventLevelUp,
		shared.EventXPMilestone,
	}, f.bus.types())

	stored := f.profile(t, "u1")
	assert.Equal(t, 510, stored.XP)
	assert.Equal(t, f.clock.Now(), stored.LastActiveDate)
}

func TestCompleteSession_StreakUsesPreviousActiveDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	for day := 0; day < 3; day++ {
		s := f.startSession(t, "u1")
		_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 50, XPEarned: 10})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	p := f.profile(t, "u1")
	assert.Equal(t, 3, p.Streak)
	assert.Equal(t, 30, p.XP)
}

func TestCompleteSession_SecondCallFailsAndChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")
	cmd := command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 90, XPEarned: 200}

	_, err := f.complete.Handle(ctx, cmd)
	require.NoError(t, err)
	f.bus.reset()

	_, err = f.complete.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	assert.Empty(t, f.bus.types())

	p := f.profile(t, "u1")
	assert.Equal(t, 200, p.XP)
	assert.Equal(t, 1, p.TotalSessions)
}

func TestCompleteSession_ConcurrentCallsOnSameSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")

	const callers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 70, XPEarned: 100})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	p := f.profile(t, "u1")
	assert.Equal(t, 100, p.XP)
	assert.Equal(t, 1, p.TotalSessions)
}

func TestCompleteSession_ConcurrentDistinctSessionsAreAllCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	const sessions = 20
	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = f.startSession(t, "u1").ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: id, Score: 60, XPEarned: 100})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	p := f.profile(t, "u1")
	assert.Equal(t, sessions*100, p.XP)
	assert.Equal(t, sessions, p.TotalSessions)
	assert.Equal(t, sessions*60, p.TotalPoints)
	assert.Equal(t, progression.LevelForXP(sessions*100), p.Level)
}

func TestCompleteSession_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")

	_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 101})
	assert.ErrorIs(t, err, shared.ErrInvalidScore)

	_, err = f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 50, XPEarned: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidXPEarned)

	_, err = f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u2", SessionID: s.ID, Score: 50})
	assert.Error(t, err)

	got, err := f.store.Sessions().GetByID(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusInProgress, got.Status)
}

func TestCompleteSession_AbandonedCannotComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")

	abandon := command.NewAbandonSessionHandler(f.store.Sessions(), f.env)
	_, err := abandon.Handle(ctx, command.AbandonSessionCommand{UserID: "u1", SessionID: s.ID})
	require.NoError(t, err)

	_, err = f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 50, XPEarned: 50})
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	assert.Zero(t, f.profile(t, "u1").XP)
}

// ─────────────────────────────────────────────────────────────────────────────
// Recalculate
// ─────────────────────────────────────────────────────────────────────────────

func TestRecalculate_RepairsDriftSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")

	for _, xp := range []int{120, 480} {
		s := f.startSession(t, "u1")
		_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 40, XPEarned: xp})
		require.NoError(t, err)
	}

	// Simulate drift through the transaction port.
	require.NoError(t, f.store.InUserTx(ctx, "u1", func(ctx context.Context, tx command.ProgressionTx) error {
		p, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		p.XP, p.TotalSessions = 7, 9
		return tx.SaveProgress(ctx, p)
	}))
	f.bus.reset()

	res, err := f.recalc.Handle(ctx, command.RecalculateStatsCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Drifted)
	assert.Equal(t, 600, res.Profile.XP)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, 2, res.Profile.TotalSessions)
	assert.Equal(t, 80, res.Profile.TotalPoints)
	assert.Empty(t, f.bus.types())

	again, err := f.recalc.Handle(ctx, command.RecalculateStatsCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, again.Drifted)
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

func TestPatchSession_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")
	patch := command.NewPatchSessionHandler(f.store.Sessions(), f.env)

	d := 12
	got, err := patch.Handle(ctx, command.PatchSessionCommand{UserID: "u1", SessionID: s.ID, Patch: session.Patch{Duration: &d}})
	require.NoError(t, err)
	assert.Equal(t, 12, got.Duration)

	_, err = f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 50, XPEarned: 10})
	require.NoError(t, err)

	_, err = patch.Handle(ctx, command.PatchSessionCommand{UserID: "u1", SessionID: s.ID, Patch: session.Patch{Duration: &d}})
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestAppendMessage_KeepsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.startSession(t, "u1")
	appendMsg := command.NewAppendMessageHandler(f.store.Sessions(), f.env)

	for _, m := range []struct {
		role    session.Role
		content string
	}{
		{session.RoleAI, "What is recursion?"},
		{session.RoleUser, "A function calling itself"},
		{session.RoleAI, "When does it stop?"},
	} {
		_, err := appendMsg.Handle(ctx, command.AppendMessageCommand{UserID: "u1", SessionID: s.ID, Role: m.role, Content: m.content})
		require.NoError(t, err)
	}

	got, err := f.store.Sessions().GetByID(ctx, "u1", s.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "What is recursion?", got.Messages[0].Content)
	assert.Equal(t, session.RoleUser, got.Messages[1].Role)
	assert.Equal(t, "When does it stop?", got.Messages[2].Content)
}

func TestAbandonSession_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.startSession(t, "u1")
	abandon := command.NewAbandonSessionHandler(f.store.Sessions(), f.env)

	got, err := abandon.Handle(ctx, command.AbandonSessionCommand{UserID: "u1", SessionID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, session.StatusAbandoned, got.Status)
	assert.Equal(t, []shared.EventType{shared.EventSessionAbandoned}, f.bus.types())

	_, err = abandon.Handle(ctx, command.AbandonSessionCommand{UserID: "u1", SessionID: s.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile updates
// ─────────────────────────────────────────────────────────────────────────────

func TestUpdateProfile_PatchDoesNotTouchProgression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "u1")
	s := f.startSession(t, "u1")
	_, err := f.complete.Handle(ctx, command.CompleteSessionCommand{UserID: "u1", SessionID: s.ID, Score: 50, XPEarned: 300})
	require.NoError(t, err)

	update := command.NewUpdateProfileHandler(f.store.Profiles(), f.recalc, f.env)
	name := "Ada"
	p, err := update.Handle(ctx, command.UpdateProfileCommand{UserID: "u1", Patch: profile.Patch{Name: &name}})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	stored := f.profile(t, "u1")
	assert.Equal(t, "Ada", stored.Name)
	assert.Equal(t, 300, stored.XP)
}

// ─────────────────────────────────────────────────────────────────────────────
// Notifications
// ─────────────────────────────────────────────────────────────────────────────

func TestMarkNotificationsRead_RequiresTarget(t *testing.T) {
	f := newFixture(t)
	h := command.NewMarkNotificationsReadHandler(f.store.Notifications(), f.env)

	_, err := h.Handle(context.Background(), command.MarkNotificationsReadCommand{UserID: "u1"})
	assert.True(t, shared.IsValidation(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────────────────────────────────────

func TestAuth_RegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := command.NewAuthHandler(f.store.Accounts(), f.ensure, fakeTokens{}, f.env,
		command.AuthHandlerConfig{BcryptCost: bcrypt.MinCost})

	reg, err := auth.Register(ctx, command.RegisterCommand{Email: "Ada@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", reg.Identity.Email)
	assert.Equal(t, "ada", reg.Identity.Name)
	assert.Equal(t, "token-"+reg.Identity.UserID, reg.Token)

	p := f.profile(t, reg.Identity.UserID)
	assert.Equal(t, "ada", p.Name)

	_, err = auth.Register(ctx, command.RegisterCommand{Email: "ada@example.com", Password: "another"})
	assert.ErrorIs(t, err, shared.ErrEmailTaken)

	login, err := auth.Login(ctx, command.LoginCommand{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.UserID, login.Identity.UserID)

	_, err = auth.Login(ctx, command.LoginCommand{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, shared.ErrBadCredentials)

	_, err = auth.Login(ctx, command.LoginCommand{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, shared.ErrBadCredentials)
}

func TestAuth_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	auth := command.NewAuthHandler(f.store.Accounts(), f.ensure, fakeTokens{}, f.env,
		command.AuthHandlerConfig{BcryptCost: bcrypt.MinCost})

	_, err := auth.Register(context.Background(), command.RegisterCommand{Email: "ada@example.com", Password: "123"})
	assert.True(t, shared.IsValidation(err))

	_, err = auth.Register(context.Background(), command.RegisterCommand{Email: "not-an-email", Password: "secret1"})
	assert.True(t, shared.IsValidation(err))
}

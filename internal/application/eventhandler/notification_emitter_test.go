package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/messaging"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/memory"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newEmitter() (*NotificationEmitter, *memory.Store) {
	store := memory.NewStore()
	return NewNotificationEmitter(store.Notifications(), timeutil.NewFixedClock(now), nil), store
}

func list(t *testing.T, store *memory.Store, uid string) []*notification.Notification {
	t.Helper()
	out, err := store.Notifications().ListByUser(context.Background(), uid, 50)
	require.NoError(t, err)
	return out
}

func TestHandle_ProgressionEventsBecomeNotifications(t *testing.T) {
	h, store := newEmitter()
	ctx := context.Background()

	events := progression.Wrap("u1", []progression.Event{
		progression.SessionMilestone{Sessions: 1},
		progression.LevelUp{Level: 2},
		progression.XPMilestone{Threshold: 500},
		progression.StreakMilestone{Streak: 7},
		progression.StreakLost{Previous: 5},
	}, now)
	for _, e := range events {
		require.NoError(t, h.Handle(ctx, e))
	}

	got := list(t, store, "u1")
	require.Len(t, got, 5)

	// newest first
	assert.Equal(t, "😢 Streak Lost", got[0].Title)
	assert.Equal(t, notification.TypeStreak, got[0].Type)
	assert.Equal(t, notification.TypeStreak, got[1].Type)
	assert.Equal(t, "💰 500 XP Earned!", got[2].Title)
	assert.Equal(t, "🎮 Level 2 Reached!", got[3].Title)
	assert.Equal(t, notification.TypeAchievement, got[4].Type)
	for _, n := range got {
		assert.False(t, n.Read)
		assert.Equal(t, now, n.CreatedAt)
	}
}

func TestHandle_ProvisionedSendsWelcome(t *testing.T) {
	h, store := newEmitter()

	require.NoError(t, h.Handle(context.Background(), shared.NewProfileProvisionedEvent("u1", "u1@example.com", "Ada", now)))

	got := list(t, store, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, notification.TypeSystem, got[0].Type)
	assert.Equal(t, notification.UploadURL, got[0].ActionURL)
}

func TestHandle_IgnoresUnrelatedEvents(t *testing.T) {
	h, store := newEmitter()

	require.NoError(t, h.Handle(context.Background(), shared.NewSessionAbandonedEvent("u1", "s1", now)))
	assert.Empty(t, list(t, store, "u1"))
}

func TestRegister_ReceivesEventsThroughBus(t *testing.T) {
	h, store := newEmitter()
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	require.NoError(t, h.Register(bus))

	for _, e := range progression.Wrap("u1", []progression.Event{progression.LevelUp{Level: 3}}, now) {
		require.NoError(t, bus.Publish(e))
	}
	require.NoError(t, bus.Publish(shared.NewSessionCompletedEvent("u1", "s1", 80, 100, now)))
	bus.Wait()

	got := list(t, store, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, "🎮 Level 3 Reached!", got[0].Title)
}

// brokenNotifications отклоняет любую запись.
type brokenNotifications struct {
	notification.Repository
}

func (brokenNotifications) Create(context.Context, *notification.Notification) error {
	return errors.New("notifications table is gone")
}

func TestEmitter_FailingStoreDoesNotUndoCompletion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := timeutil.NewFixedClock(now)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	emitter := NewNotificationEmitter(brokenNotifications{store.Notifications()}, clock, nil)
	require.NoError(t, emitter.Register(bus))

	env := command.Env{Clock: clock, DayZone: time.UTC, Publisher: bus}
	checkIn := command.NewCheckInHandler(store, env)
	_, err := command.NewEnsureProfileHandler(store.Profiles(), checkIn, env).Handle(ctx, command.EnsureProfileCommand{
		UserID: "u1", Email: "u1@example.com",
	})
	require.NoError(t, err)
	sess, err := command.NewCreateSessionHandler(store.Sessions(), env).Handle(ctx, command.CreateSessionCommand{
		UserID: "u1", Topic: "Recursion", Subject: "Computer Science",
	})
	require.NoError(t, err)

	_, err = command.NewCompleteSessionHandler(store, env).Handle(ctx, command.CompleteSessionCommand{
		UserID: "u1", SessionID: sess.ID, Score: 85, XPEarned: 510,
	})
	require.NoError(t, err)
	bus.Wait()

	p, err := store.Profiles().GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 510, p.XP)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 1, p.TotalSessions)
	assert.Equal(t, 85, p.TotalPoints)

	assert.Positive(t, bus.Metrics().Snapshot().HandlerFailures)
	assert.Empty(t, list(t, store, "u1"))
}

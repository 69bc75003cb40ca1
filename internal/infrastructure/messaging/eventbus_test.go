package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.HandlerTimeout = time.Second
	return NewInMemoryEventBus(cfg)
}

func TestPublish_DeliversToTypedAndGlobalHandlers(t *testing.T) {
	bus := newBus()
	defer bus.Close()

	var typed, global atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventSessionCompleted, func(context.Context, shared.Event) error {
		typed.Add(1)
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		global.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewSessionCompletedEvent("u1", "s1", 80, 100, now)))
	require.NoError(t, bus.Publish(shared.NewSessionAbandonedEvent("u1", "s2", now)))
	bus.Wait()

	assert.EqualValues(t, 1, typed.Load())
	assert.EqualValues(t, 2, global.Load())
}

func TestPublish_DoesNotBlockOnSlowHandler(t *testing.T) {
	bus := newBus()
	defer bus.Close()

	release := make(chan struct{})
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		<-release
		return nil
	}))

	done := make(chan struct{})
	go func() {
		_ = bus.Publish(shared.NewSessionAbandonedEvent("u1", "s1", now))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on handler")
	}
	close(release)
	bus.Wait()
}

func TestPublish_HandlerFailuresAreCounted(t *testing.T) {
	bus := newBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		return errors.New("store down")
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(shared.NewSessionAbandonedEvent("u1", "s1", now)))
	bus.Wait()

	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.TotalHandlerExecs)
	assert.EqualValues(t, 2, snap.HandlerFailures)
}

func TestPublish_HandlerReceivesDeadline(t *testing.T) {
	bus := newBus()
	defer bus.Close()

	var mu sync.Mutex
	var hasDeadline bool
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, _ shared.Event) error {
		_, ok := ctx.Deadline()
		mu.Lock()
		hasDeadline = ok
		mu.Unlock()
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewSessionAbandonedEvent("u1", "s1", now)))
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, hasDeadline)
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	bus := newBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewSessionAbandonedEvent("u1", "s1", now)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestPublish_NilEvent(t *testing.T) {
	bus := newBus()
	defer bus.Close()
	assert.Error(t, bus.Publish(nil))
}

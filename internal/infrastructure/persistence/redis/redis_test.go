package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/memory"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// fakeKV is an in-process stand-in for the Redis commands used here.
type fakeKV struct {
	mu      sync.Mutex
	ints    map[string]int
	markers map[string]bool
	reads   int
	failGet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{ints: map[string]int{}, markers: map[string]bool{}}
}

func (f *fakeKV) GetInt(_ context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failGet {
		return 0, errors.New("connection refused")
	}
	n, ok := f.ints[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	return n, nil
}

func (f *fakeKV) SetInt(_ context.Context, key string, value int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.ints, k)
	}
	return nil
}

func (f *fakeKV) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints[key]++
	return int64(f.ints[key]), nil
}

func (f *fakeKV) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markers[key] {
		return false, nil
	}
	f.markers[key] = true
	return true, nil
}

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newNotification(t *testing.T, uid string) *notification.Notification {
	t.Helper()
	n, err := notification.New(notification.NewNotificationParams{
		UserID:  uid,
		Type:    notification.TypeSystem,
		Title:   "Hello",
		Message: "World",
	}, t0)
	require.NoError(t, err)
	return n
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig("redis://:secret@cache:6380/2")
	cfg.PoolSize = 25

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 25, opts.PoolSize)

	_, err = DefaultConfig("http://nope").Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "notifications:unread:u1", UnreadKey("u1"))
	assert.Equal(t, "ratelimit:ip:1.2.3.4:42", RateLimitKey("ip:1.2.3.4", 42))
	assert.Equal(t, "lock:job:repair_stats", LockKey("job:repair_stats"))
	assert.Equal(t, "reminder:streak:u1:2024-06-01", ReminderKey("u1", "2024-06-01"))
}

func TestCachedNotificationRepository_CountUnread(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	kv := newFakeKV()
	repo := NewCachedNotificationRepository(store.Notifications(), kv, nil)

	n1 := newNotification(t, "u1")
	require.NoError(t, repo.Create(ctx, n1))
	require.NoError(t, repo.Create(ctx, newNotification(t, "u1")))

	count, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, kv.ints[UnreadKey("u1")])

	t.Run("served from cache", func(t *testing.T) {
		kv.ints[UnreadKey("u1")] = 7
		count, err := repo.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 7, count)
	})

	t.Run("writes invalidate", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, "u1", n1.ID))
		_, cached := kv.ints[UnreadKey("u1")]
		assert.False(t, cached)

		count, err := repo.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		changed, err := repo.MarkAllRead(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, changed)

		count, err = repo.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("failed write keeps counter", func(t *testing.T) {
		kv.ints[UnreadKey("u1")] = 3
		err := repo.Delete(ctx, "u1", "missing")
		require.Error(t, err)
		assert.Equal(t, 3, kv.ints[UnreadKey("u1")])
	})
}

func TestCachedNotificationRepository_FallsBackOnCacheError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	kv := newFakeKV()
	kv.failGet = true
	repo := NewCachedNotificationRepository(store.Notifications(), kv, nil)

	require.NoError(t, repo.Create(ctx, newNotification(t, "u1")))
	count, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// interleaved runs during once, after the wrapped count was taken.
type interleaved struct {
	notification.Repository
	during func()
}

func (r *interleaved) CountUnread(ctx context.Context, uid string) (int, error) {
	n, err := r.Repository.CountUnread(ctx, uid)
	if d := r.during; d != nil {
		r.during = nil
		d()
	}
	return n, err
}

func TestCachedNotificationRepository_WriteDuringRefillDropsCounter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	kv := newFakeKV()
	inner := &interleaved{Repository: store.Notifications()}
	repo := NewCachedNotificationRepository(inner, kv, nil)

	inner.during = func() {
		require.NoError(t, repo.Create(ctx, newNotification(t, "u1")))
	}

	count, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	_, cached := kv.ints[UnreadKey("u1")]
	assert.False(t, cached, "count taken before the write must not stay cached")

	count, err = repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, kv.ints[UnreadKey("u1")])
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFixedClock(t0.Add(10 * time.Second))
	limiter := NewRateLimiter(newFakeKV(), 3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	other, err := limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(time.Minute)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestReminderLedger_Claim(t *testing.T) {
	ctx := context.Background()
	ledger := NewReminderLedger(newFakeKV(), time.UTC)

	ok, err := ledger.Claim(ctx, "u1", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, "u1", t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ledger.Claim(ctx, "u1", t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

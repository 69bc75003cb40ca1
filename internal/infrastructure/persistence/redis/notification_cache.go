package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED NOTIFICATION REPOSITORY
// Read-through cache of the unread counter. Every write drops the counter;
// the next CountUnread repopulates it from the wrapped repository.
// A count read before a concurrent write is dropped again after it is cached.
// Cache failures fall back to the repository and are only logged.
// ══════════════════════════════════════════════════════════════════════════════

// CounterStore is the subset of Cache used by the decorator.
type CounterStore interface {
	GetInt(ctx context.Context, key string) (int, error)
	SetInt(ctx context.Context, key string, value int, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedNotificationRepository decorates a notification.Repository.
type CachedNotificationRepository struct {
	next  notification.Repository
	store CounterStore
	ttl   time.Duration
	log   *logger.Logger

	// writes counts successful writes made through this decorator.
	writes atomic.Uint64
}

var _ notification.Repository = (*CachedNotificationRepository)(nil)

// NewCachedNotificationRepository wraps next with an unread counter cache.
func NewCachedNotificationRepository(next notification.Repository, store CounterStore, log *logger.Logger) *CachedNotificationRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedNotificationRepository{
		next:  next,
		store: store,
		ttl:   TTLUnreadCount,
		log:   log.With(logger.Component("notification_cache")),
	}
}

// Create stores n and drops the owner's counter.
func (r *CachedNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if err := r.next.Create(ctx, n); err != nil {
		return err
	}
	r.written(ctx, n.UserID)
	return nil
}

// ListByUser is not cached.
func (r *CachedNotificationRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*notification.Notification, error) {
	return r.next.ListByUser(ctx, uid, limit)
}

// CountUnread serves the counter from Redis when present.
func (r *CachedNotificationRepository) CountUnread(ctx context.Context, uid string) (int, error) {
	key := UnreadKey(uid)

	n, err := r.store.GetInt(ctx, key)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Warn("unread counter read failed", logger.UserID(uid), logger.Err(err))
	}

	seen := r.writes.Load()
	n, err = r.next.CountUnread(ctx, uid)
	if err != nil {
		return 0, err
	}
	if err := r.store.SetInt(ctx, key, n, r.ttl); err != nil {
		r.log.Warn("unread counter write failed", logger.UserID(uid), logger.Err(err))
		return n, nil
	}
	if r.writes.Load() != seen {
		r.invalidate(ctx, uid)
	}
	return n, nil
}

// MarkRead marks one notification read and drops the counter.
func (r *CachedNotificationRepository) MarkRead(ctx context.Context, uid, id string) error {
	if err := r.next.MarkRead(ctx, uid, id); err != nil {
		return err
	}
	r.written(ctx, uid)
	return nil
}

// MarkAllRead marks everything read and drops the counter.
func (r *CachedNotificationRepository) MarkAllRead(ctx context.Context, uid string) (int, error) {
	n, err := r.next.MarkAllRead(ctx, uid)
	if err != nil {
		return 0, err
	}
	r.written(ctx, uid)
	return n, nil
}

// Delete removes a notification and drops the counter.
func (r *CachedNotificationRepository) Delete(ctx context.Context, uid, id string) error {
	if err := r.next.Delete(ctx, uid, id); err != nil {
		return err
	}
	r.written(ctx, uid)
	return nil
}

func (r *CachedNotificationRepository) written(ctx context.Context, uid string) {
	r.writes.Add(1)
	r.invalidate(ctx, uid)
}

func (r *CachedNotificationRepository) invalidate(ctx context.Context, uid string) {
	if err := r.store.Delete(ctx, UnreadKey(uid)); err != nil {
		r.log.Warn("unread counter invalidation failed", logger.UserID(uid), logger.Err(err))
	}
}

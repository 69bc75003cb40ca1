// Package redis implements the Redis-backed helpers of FeynLearn Hub:
// the unread notification counter cache, the fixed-window rate limiter,
// reminder de-duplication and the distributed job lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// KeyPrefix namespaces every key written by this process.
	KeyPrefix string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "feynlearn:",
	}
}

// Options parses the URL and applies the pool overrides.
func (c Config) Options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.MaxRetries > 0 {
		opts.MaxRetries = c.MaxRetries
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY PREFIXES AND TTLs
// ══════════════════════════════════════════════════════════════════════════════

const (
	PrefixUnread    = "notifications:unread:"
	PrefixRateLimit = "ratelimit:"
	PrefixLock      = "lock:"
	PrefixReminder  = "reminder:streak:"
)

const (
	// TTLUnreadCount bounds staleness if an invalidation is lost or another
	// process races a write against a counter refill.
	TTLUnreadCount = time.Minute

	// TTLReminderMarker outlives the calendar day it guards.
	TTLReminderMarker = 36 * time.Hour

	// TTLDistributedLock is the default lock TTL.
	TTLDistributedLock = 10 * time.Minute
)

// UnreadKey returns the unread counter key of a user.
func UnreadKey(uid string) string {
	return PrefixUnread + uid
}

// RateLimitKey returns the counter key of one fixed window.
func RateLimitKey(identifier string, window int64) string {
	return PrefixRateLimit + identifier + ":" + strconv.FormatInt(window, 10)
}

// LockKey returns the lock key of a resource.
func LockKey(resource string) string {
	return PrefixLock + resource
}

// ReminderKey returns the once-per-day streak reminder marker.
func ReminderKey(uid, day string) string {
	return PrefixReminder + uid + ":" + day
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache wraps a go-redis client with JSON values and a key namespace.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache connects to Redis and waits until it answers PING.
func NewCache(ctx context.Context, cfg Config, log *logger.Logger) (*Cache, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	client := redis.NewClient(opts)
	err = retry.Connect().Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis not ready", logger.Err(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	log.Info("connected to redis", logger.String("addr", opts.Addr))
	return NewCacheFromClient(client, cfg.KeyPrefix), nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Client returns the underlying client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get decodes the JSON value stored under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Set stores value as JSON under key.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// GetInt reads an integer counter.
func (c *Cache) GetInt(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, ErrCacheKeyEmpty
	}
	n, err := c.client.Get(ctx, c.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	return n, err
}

// SetInt stores an integer counter.
func (c *Cache) SetInt(ctx context.Context, key string, value int, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// SetNX stores value only if key is absent and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}
	return c.client.SetNX(ctx, c.key(key), value, ttl).Result()
}

// IncrWindow increments key and sets ttl when the key is created.
func (c *Cache) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if key == "" {
		return 0, ErrCacheKeyEmpty
	}
	full := c.key(key)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, full)
		pipe.ExpireNX(ctx, full, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCK
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock acquires the lock of resource. It returns a release func and
// false if another holder owns it.
func (c *Cache) TryLock(ctx context.Context, resource, token string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := c.key(LockKey(resource))
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return release, true, nil
}

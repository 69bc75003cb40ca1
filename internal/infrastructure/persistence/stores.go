// Package persistence selects and assembles the record stores of a process:
// PostgreSQL when a database URL is configured, the in-memory store
// otherwise, with the Redis unread-count cache layered on top when Redis is
// reachable.
package persistence

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/account"
	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/memory"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/redis"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// Options selects the backends.
type Options struct {
	// Postgres.URL empty selects the in-memory store.
	Postgres    postgres.Config
	AutoMigrate bool

	// Redis.URL empty disables Redis.
	Redis redisstore.Config

	// RedisOptional keeps the process running without Redis when the
	// first ping fails.
	RedisOptional bool

	Logger *logger.Logger
}

// Stores is the set of repositories a process works with.
type Stores struct {
	Profiles      profile.Repository
	Sessions      session.Repository
	Notifications notification.Repository
	Accounts      account.Repository
	Progression   command.ProgressionStore

	// DB is nil in memory mode.
	DB *postgres.Connection

	// Cache is nil when Redis is off.
	Cache *redisstore.Cache
}

// Backend names the record store in use.
func (s *Stores) Backend() string {
	if s.DB != nil {
		return "postgres"
	}
	return "memory"
}

// Open connects the configured backends.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("persistence"))

	s := &Stores{}

	if opts.Postgres.URL == "" {
		log.Warn("DATABASE_URL is not set, using the in-memory store")
		mem := memory.NewStore()
		s.Profiles = mem.Profiles()
		s.Sessions = mem.Sessions()
		s.Notifications = mem.Notifications()
		s.Accounts = mem.Accounts()
		s.Progression = mem
	} else {
		conn, err := postgres.NewConnection(ctx, opts.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if opts.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		s.DB = conn
		s.Profiles = postgres.NewProfileRepository(conn)
		s.Sessions = postgres.NewSessionRepository(conn)
		s.Notifications = postgres.NewNotificationRepository(conn)
		s.Accounts = postgres.NewAccountRepository(conn)
		s.Progression = postgres.NewProgressionStore(conn)
	}

	if opts.Redis.URL != "" {
		cache, err := redisstore.NewCache(ctx, opts.Redis, log)
		switch {
		case err == nil:
			s.Cache = cache
			s.Notifications = redisstore.NewCachedNotificationRepository(s.Notifications, cache, log)
		case opts.RedisOptional:
			log.Warn("failed to connect to Redis, continuing without cache", logger.Err(err))
		default:
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	log.Info("stores ready",
		logger.String("backend", s.Backend()),
		logger.Bool("redis", s.Cache != nil),
	)
	return s, nil
}

// Close releases the connections.
func (s *Stores) Close() {
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

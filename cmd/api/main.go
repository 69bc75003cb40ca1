// Package main is the entry point of the FeynLearn API: the REST surface of
// the progression core, the notification emitter and the learning endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/feynlearn/feynlearn-hub/config"
	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/application/eventhandler"
	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/extract"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/llm"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/messaging"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/feynlearn/feynlearn-hub/internal/interface/http"
	"github.com/feynlearn/feynlearn-hub/internal/interface/http/handlers"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer log.Sync()

	log.Info("starting FeynLearn API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("day_zone", cfg.Progression.DayZoneName),
	)

	clock := timeutil.SystemClock{}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Stores
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := persistence.Open(ctx, storeOptions(cfg, log))
	if err != nil {
		return err
	}
	defer stores.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event bus and notification emitter
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	emitter := eventhandler.NewNotificationEmitter(stores.Notifications, clock, log)
	if err := emitter.Register(bus); err != nil {
		return fmt.Errorf("failed to register notification emitter: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	tokens, err := httpserver.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer, clock)
	if err != nil {
		return err
	}

	env := command.Env{
		Clock:     clock,
		DayZone:   cfg.Progression.DayZone,
		Publisher: bus,
		Log:       log,
	}

	checkIn := command.NewCheckInHandler(stores.Progression, env)
	recalc := command.NewRecalculateStatsHandler(stores.Progression, env)
	ensure := command.NewEnsureProfileHandler(stores.Profiles, checkIn, env)

	deps := httpserver.Dependencies{
		EnsureProfile:         ensure,
		UpdateProfile:         command.NewUpdateProfileHandler(stores.Profiles, recalc, env),
		CheckIn:               checkIn,
		RecalculateStats:      recalc,
		CreateSession:         command.NewCreateSessionHandler(stores.Sessions, env),
		PatchSession:          command.NewPatchSessionHandler(stores.Sessions, env),
		AppendMessage:         command.NewAppendMessageHandler(stores.Sessions, env),
		CompleteSession:       command.NewCompleteSessionHandler(stores.Progression, env),
		AbandonSession:        command.NewAbandonSessionHandler(stores.Sessions, env),
		CreateNotification:    command.NewCreateNotificationHandler(stores.Notifications, env),
		MarkNotificationsRead: command.NewMarkNotificationsReadHandler(stores.Notifications, env),
		DeleteNotification:    command.NewDeleteNotificationHandler(stores.Notifications, env),

		GetLeaderboard:    query.NewGetLeaderboardHandler(stores.Profiles, clock),
		GetDashboard:      query.NewGetDashboardHandler(stores.Profiles, stores.Sessions, stores.Notifications, clock, cfg.Progression.DayZone),
		ListSessions:      query.NewListSessionsHandler(stores.Sessions),
		GetSession:        query.NewGetSessionHandler(stores.Sessions),
		ListNotifications: query.NewListNotificationsHandler(stores.Notifications),

		Tokens: tokens,
		Logger: log,
	}

	if cfg.Features.IsEnabled(config.FeatureRegistration, nil) {
		deps.Auth = command.NewAuthHandler(stores.Accounts, ensure, tokens, env,
			command.AuthHandlerConfig{BcryptCost: cfg.Auth.BcryptCost})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Learning: Gemini, extraction
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.IsEnabled(config.FeatureLLM, nil) {
		gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		defer gemini.Close()

		deps.Tutor = llm.NewTutor(llm.NewResilient(gemini, llm.ResilientOptions{Logger: log}))
		deps.Extractor = extract.NewService(extract.Config{
			MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
			MaxChars:       cfg.Extraction.MaxChars,
			FetchTimeout:   cfg.Extraction.FetchTimeout,
			UserAgent:      cfg.Extraction.UserAgent,
		}, nil, log)
	} else {
		log.Info("learning endpoints disabled")
	}

	if cfg.Features.IsEnabled(config.FeatureRateLimit, nil) && cfg.HTTP.RateLimit > 0 {
		deps.RateLimiter = rateLimiter(cfg, stores, clock)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Health checks
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if stores.DB != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(stores.DB))
	}
	if stores.Cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(stores.Cache))
	}
	deps.HealthChecker = health

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.LearnTimeout = cfg.HTTP.LearnTimeout
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.MaxUploadBytes = cfg.HTTP.MaxUploadBytes
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableRegistration = deps.Auth != nil
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Run until a signal or a fatal error
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", logger.Err(err))
			return err
		}
		// Let in-flight notification handlers finish before the stores close.
		bus.Wait()
		return nil
	})

	log.Info("FeynLearn API is running",
		logger.String("address", httpCfg.Address()),
		logger.String("backend", stores.Backend()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Development = cfg.Observability.LogFormat == "console"
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

func storeOptions(cfg *config.Config, log *logger.Logger) persistence.Options {
	pg := postgres.DefaultConfig(cfg.Database.URL)
	pg.MaxConns = int32(cfg.Database.MaxConns)
	pg.MinConns = int32(cfg.Database.MinConns)
	pg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	rc := redisstore.DefaultConfig(cfg.Redis.RedisURL())
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	rc.KeyPrefix = cfg.Redis.KeyPrefix

	return persistence.Options{
		Postgres:      pg,
		AutoMigrate:   cfg.Database.AutoMigrate,
		Redis:         rc,
		RedisOptional: !cfg.IsProduction(),
		Logger:        log,
	}
}

// rateLimiter shares the window across replicas through Redis when it is
// available and falls back to a per-process token bucket.
func rateLimiter(cfg *config.Config, stores *persistence.Stores, clock timeutil.Clock) handlers.RateLimiter {
	if stores.Cache == nil {
		return handlers.NewLocalRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
	}

	rl := redisstore.NewRateLimiter(stores.Cache, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow, clock)
	return handlers.RateLimiterFunc(func(ctx context.Context, key string) (handlers.RateDecision, error) {
		d, err := rl.Allow(ctx, key)
		if err != nil {
			return handlers.RateDecision{}, err
		}
		return handlers.RateDecision{
			Allowed:    d.Allowed,
			Limit:      d.Limit,
			Remaining:  d.Remaining,
			RetryAfter: d.RetryAfter,
		}, nil
	})
}

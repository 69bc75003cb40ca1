// Package http implements the REST API of FeynLearn Hub.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/extract"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/llm"
	"github.com/feynlearn/feynlearn-hub/internal/interface/http/handlers"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds handler execution (chi Timeout middleware).
	// Learning endpoints call the model and get LearnTimeout instead.
	RequestTimeout time.Duration
	LearnTimeout   time.Duration

	MaxHeaderBytes int

	// MaxBodyBytes limits JSON bodies; MaxUploadBytes limits multipart uploads.
	MaxBodyBytes   int64
	MaxUploadBytes int64

	// AllowedOrigins for CORS. Empty disables CORS handling.
	AllowedOrigins []string

	// EnableRegistration exposes /auth/register and /auth/login.
	EnableRegistration bool

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       90 * time.Second,
		IdleTimeout:        60 * time.Second,
		RequestTimeout:     15 * time.Second,
		LearnTimeout:       75 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		MaxUploadBytes:     20 << 20,
		AllowedOrigins:     []string{"http://localhost:3000"},
		EnableRegistration: true,
		Version:            "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the routes call into. Nil optional
// dependencies turn their routes off.
type Dependencies struct {
	// Commands (CQRS write side)
	EnsureProfile         *command.EnsureProfileHandler
	UpdateProfile         *command.UpdateProfileHandler
	CheckIn               *command.CheckInHandler
	RecalculateStats      *command.RecalculateStatsHandler
	CreateSession         *command.CreateSessionHandler
	PatchSession          *command.PatchSessionHandler
	AppendMessage         *command.AppendMessageHandler
	CompleteSession       *command.CompleteSessionHandler
	AbandonSession        *command.AbandonSessionHandler
	CreateNotification    *command.CreateNotificationHandler
	MarkNotificationsRead *command.MarkNotificationsReadHandler
	DeleteNotification    *command.DeleteNotificationHandler

	// Auth is optional; nil disables the credentials flow.
	Auth *command.AuthHandler

	// Queries (CQRS read side)
	GetLeaderboard    *query.GetLeaderboardHandler
	GetDashboard      *query.GetDashboardHandler
	ListSessions      *query.ListSessionsHandler
	GetSession        *query.GetSessionHandler
	ListNotifications *query.ListNotificationsHandler

	// Learning endpoints; nil Tutor disables them.
	Tutor     *llm.Tutor
	Extractor extract.Extractor

	// Tokens verifies bearer tokens. Required.
	Tokens *TokenService

	// RateLimiter is optional.
	RateLimiter handlers.RateLimiter

	HealthChecker handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     chi.Router
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))
	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = handlers.NewCompositeHealthChecker(config.Version)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(handlers.SecurityHeadersMiddleware)

	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(std chi.Router) {
			std.Use(middleware.Timeout(s.config.RequestTimeout))
			std.Use(handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))

			// ─────────────────────────────────────────────────────────────
			// Public
			// ─────────────────────────────────────────────────────────────
			std.Group(func(public chi.Router) {
				public.Use(s.optionalAuth)
				public.Use(s.rateLimitMiddleware)

				public.Get("/leaderboard", s.handleGetLeaderboard)

				if s.config.EnableRegistration && s.deps.Auth != nil {
					public.Post("/auth/register", s.handleRegister)
					public.Post("/auth/login", s.handleLogin)
				}
			})

			// ─────────────────────────────────────────────────────────────
			// Authenticated
			// ─────────────────────────────────────────────────────────────
			std.Group(func(protected chi.Router) {
				protected.Use(s.requireAuth)
				protected.Use(s.rateLimitMiddleware)
				protected.Use(handlers.NoCacheMiddleware)

				protected.Get("/dashboard", s.handleGetDashboard)

				protected.Get("/profile", s.handleGetProfile)
				protected.Patch("/profile", s.handleUpdateProfile)
				protected.Post("/profile/check-in", s.handleCheckIn)
				protected.Post("/profile/recalculate", s.handleRecalculate)

				protected.Get("/sessions", s.handleListSessions)
				protected.Post("/sessions", s.handleCreateSession)
				protected.Get("/sessions/{id}", s.handleGetSession)
				protected.Patch("/sessions/{id}", s.handlePatchSession)
				protected.Post("/sessions/{id}/messages", s.handleAppendMessage)
				protected.Post("/sessions/{id}/complete", s.handleCompleteSession)
				protected.Post("/sessions/{id}/abandon", s.handleAbandonSession)

				protected.Get("/notifications", s.handleListNotifications)
				protected.Post("/notifications", s.handleCreateNotification)
				protected.Patch("/notifications", s.handleMarkNotificationsRead)
				protected.Delete("/notifications/{id}", s.handleDeleteNotification)
			})
		})

		// Model calls outlive the default request timeout and accept
		// uploads, so the learning routes get their own limits.
		if s.deps.Tutor != nil {
			api.Group(func(learn chi.Router) {
				learn.Use(middleware.Timeout(s.config.LearnTimeout))
				learn.Use(handlers.RequestSizeLimitMiddleware(s.config.MaxUploadBytes))
				learn.Use(s.requireAuth)
				learn.Use(s.rateLimitMiddleware)

				learn.Post("/learn/chat", s.handleLearnChat)
				if s.deps.Extractor != nil {
					learn.Post("/learn/topics", s.handleLearnTopics)
					learn.Post("/learn/notes", s.handleLearnNotes)
				}
			})
		}
	})

	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Package handlers contains HTTP building blocks shared by the API server:
// health checks and reusable middleware.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Middleware
//
//	// Per-key token buckets, used when Redis is not configured
//	limiter := handlers.NewLocalRateLimiter(120, time.Minute)
//
//	// Security headers and body limits
//	r.Use(handlers.SecurityHeadersMiddleware)
//	r.Use(handlers.RequestSizeLimitMiddleware(1 << 20))
package handlers

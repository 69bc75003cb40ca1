package http

import (
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// loggingMiddleware attaches a request scoped logger to the context and logs
// every request once it has been served.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(middleware.RequestIDHeader, requestID)
		}

		log := s.logger.WithRequestID(requestID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	})
}

// recoveryMiddleware recovers from panics and returns a structured 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.FromContext(r.Context()).Error("panic recovered",
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())),
				logger.String("path", r.URL.Path),
			)
			writeErrorCode(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		id, err := s.deps.Tokens.Verify(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := withIdentity(r.Context(), id)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(logger.UserID(id.UserID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := bearerToken(r); ok {
			if id, err := s.deps.Tokens.Verify(raw); err == nil {
				r = r.WithContext(withIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware limits per user, or per client IP for anonymous calls.
// Limiter failures let the request through.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.deps.RateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if uid := userID(r.Context()); uid != "" {
			key = "user:" + uid
		}

		d, err := s.deps.RateLimiter.Allow(r.Context(), key)
		if err != nil {
			logger.FromContext(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			writeError(w, r, shared.NewDomainError("http", "RateLimit", shared.ErrRateLimited,
				"Too many requests, please try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

// clientIP returns the host part of RemoteAddr, which middleware.RealIP
// has already rewritten from the proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

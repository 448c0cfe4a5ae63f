package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// SecurityHeadersMiddleware sets defensive HTTP response headers on every
// response. The CSP is locked down because the server only serves JSON.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// maxBodySize limits request bodies to 1MB. The API accepts only small JSON
// payloads; media uploads go elsewhere.
const maxBodySize = 1 << 20

// LimitBodyMiddleware caps the request body size so a client cannot exhaust
// server memory with an oversized payload.
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// visitor tracks request timestamps for one client IP.
type visitor struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// RateLimiter is a sliding-window per-IP rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	cleanup  time.Duration
}

// NewRateLimiter creates a rate limiter allowing rate requests per window.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  2 * window,
	}
}

// Allow reports whether a request from the given IP is within the limit,
// recording it if so.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	// Drop timestamps outside the window
	cutoff := now.Add(-rl.window)
	kept := v.timestamps[:0]
	for _, ts := range v.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	v.timestamps = kept

	if len(v.timestamps) >= rl.rate {
		return false
	}
	v.timestamps = append(v.timestamps, now)

	// Opportunistic cleanup of idle visitors
	for addr, vis := range rl.visitors {
		if now.Sub(vis.lastSeen) > rl.cleanup {
			delete(rl.visitors, addr)
		}
	}

	return true
}

// RateLimitConfig groups the limiters applied per route class.
type RateLimitConfig struct {
	// ReportLimiter covers report submission, the most abuse-prone routes.
	ReportLimiter *RateLimiter
	// APILimiter covers the rest of /api/ and the moderation console.
	APILimiter *RateLimiter
	// GlobalLimiter covers everything else.
	GlobalLimiter *RateLimiter
}

// NewDefaultRateLimitConfig returns per-IP limits suitable for production.
func NewDefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		ReportLimiter: NewRateLimiter(20, time.Minute),
		APILimiter:    NewRateLimiter(300, time.Minute),
		GlobalLimiter: NewRateLimiter(600, time.Minute),
	}
}

// RateLimitMiddleware applies per-IP rate limiting, choosing a limiter by
// route class.
func RateLimitMiddleware(config *RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)

			limiter := config.GlobalLimiter
			switch {
			case strings.HasPrefix(r.URL.Path, "/api/reports/"):
				limiter = config.ReportLimiter
			case strings.HasPrefix(r.URL.Path, "/api/"), strings.HasPrefix(r.URL.Path, "/_mod/"):
				limiter = config.APILimiter
			}

			if !limiter.Allow(ip) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

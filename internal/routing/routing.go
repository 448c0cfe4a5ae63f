// Package routing wires the HTTP mux and middleware chain.
package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iceinvein/mlem/internal/handlers"
	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/middleware"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Sessions middleware.SessionLookup
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Create CrossOriginProtection for CSRF protection
	cop := http.NewCrossOriginProtection()

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Report submission
	mux.Handle("POST /api/reports/content", cop.Handler(http.HandlerFunc(h.HandleContentReport)))
	mux.Handle("POST /api/reports/user", cop.Handler(http.HandlerFunc(h.HandleUserReport)))

	// Feed: memes, comments, viewer mutes
	mux.Handle("POST /api/memes", cop.Handler(http.HandlerFunc(h.HandleCreateMeme)))
	mux.HandleFunc("GET /api/memes/{id}", h.HandleGetMeme)
	mux.Handle("POST /api/memes/{id}/comments", cop.Handler(http.HandlerFunc(h.HandleCreateComment)))
	mux.HandleFunc("GET /api/memes/{id}/comments", h.HandleListComments)
	mux.Handle("POST /api/mutes/{id}", cop.Handler(http.HandlerFunc(h.HandleMuteUserForViewer)))
	mux.Handle("DELETE /api/mutes/{id}", cop.Handler(http.HandlerFunc(h.HandleUnmuteUserForViewer)))
	mux.HandleFunc("GET /api/mutes", h.HandleListViewerMutes)

	// Warnings and enforcement state for the signed-in user
	mux.HandleFunc("GET /api/warnings", h.HandleMyWarnings)
	mux.Handle("POST /api/warnings/seen", cop.Handler(http.HandlerFunc(h.HandleMarkWarningsSeen)))
	mux.Handle("POST /api/warnings/{id}/dismiss", cop.Handler(http.HandlerFunc(h.HandleDismissWarning)))
	mux.HandleFunc("GET /api/auth/check", h.HandleAuthCheck)
	mux.Handle("POST /api/suspension/refresh", cop.Handler(http.HandlerFunc(h.HandleSuspensionRefresh)))

	// Moderation console (role checks happen in the services)
	mux.HandleFunc("GET /_mod/reports", h.HandleListReports)
	mux.Handle("POST /_mod/reports/{id}/status", cop.Handler(http.HandlerFunc(h.HandleUpdateReportStatus)))
	mux.HandleFunc("GET /_mod/reported-users", h.HandleReportedUsers)
	mux.Handle("POST /_mod/users/{id}/warn", cop.Handler(http.HandlerFunc(h.HandleWarnUser)))
	mux.Handle("POST /_mod/users/{id}/strike", cop.Handler(http.HandlerFunc(h.HandleStrikeUser)))
	mux.Handle("POST /_mod/users/{id}/mute", cop.Handler(http.HandlerFunc(h.HandleMuteUser)))
	mux.Handle("POST /_mod/users/{id}/suspend", cop.Handler(http.HandlerFunc(h.HandleSuspendUser)))
	mux.Handle("POST /_mod/users/{id}/unmute", cop.Handler(http.HandlerFunc(h.HandleUnmuteUser)))
	mux.Handle("POST /_mod/users/{id}/unsuspend", cop.Handler(http.HandlerFunc(h.HandleUnsuspendUser)))
	mux.HandleFunc("GET /_mod/users/{id}/history", h.HandleUserHistory)
	mux.HandleFunc("GET /_mod/users/{id}/status", h.HandleUserStatus)
	mux.HandleFunc("GET /_mod/stats", h.HandleAdminStats)

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs last on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Logging and request metrics, after auth so the caller is known
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 3. Resolve the session to a caller identity
	handler = middleware.AuthMiddleware(cfg.Sessions)(handler)

	// 4. Apply rate limiting
	rateLimitConfig := middleware.NewDefaultRateLimitConfig()
	handler = middleware.RateLimitMiddleware(rateLimitConfig)(handler)

	// 5. Trace server spans for every request
	handler = otelhttp.NewHandler(handler, "mlem",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + metrics.NormalizePath(r.URL.Path)
		}))

	// 6. Apply security headers (outermost - wraps everything)
	handler = middleware.SecurityHeadersMiddleware(handler)

	return handler
}

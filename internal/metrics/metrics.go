package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlem_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlem_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation metrics (gauges updated periodically by collector)
var (
	PendingContentReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mlem_content_reports_pending",
		Help: "Number of content reports awaiting review",
	})

	PendingUserReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mlem_user_reports_pending",
		Help: "Number of user reports awaiting review",
	})
)

// Event counters (incremented on occurrence)
var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlem_reports_total",
		Help: "Total number of reports filed",
	}, []string{"kind"})

	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlem_moderation_actions_total",
		Help: "Total number of moderation actions applied",
	}, []string{"type"})

	EnforcementDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlem_enforcement_denials_total",
		Help: "Total number of posting attempts denied by enforcement",
	}, []string{"reason"})

	SuspensionExpiriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlem_suspension_expiries_total",
		Help: "Total number of suspensions cleared after expiry",
	})

	MemesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlem_memes_total",
		Help: "Total number of memes posted",
	})

	CommentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlem_comments_total",
		Help: "Total number of comments posted",
	})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 2 {
		return path
	}

	switch segments[0] {
	case "api":
		switch segments[1] {
		case "memes":
			if len(segments) == 3 {
				return "/api/memes/:id"
			}
			if len(segments) == 4 && segments[3] == "comments" {
				return "/api/memes/:id/comments"
			}
		case "mutes":
			if len(segments) == 3 {
				return "/api/mutes/:id"
			}
		case "warnings":
			if len(segments) == 4 && segments[3] == "dismiss" {
				return "/api/warnings/:id/dismiss"
			}
		}
	case "_mod":
		switch segments[1] {
		case "reports":
			if len(segments) == 4 && segments[3] == "status" {
				return "/_mod/reports/:id/status"
			}
		case "users":
			if len(segments) == 4 {
				return "/_mod/users/:id/" + segments[3]
			}
			if len(segments) == 3 {
				return "/_mod/users/:id"
			}
		}
	}

	return path
}

func splitPath(path string) []string {
	// Skip leading slash
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	// Split on /
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}

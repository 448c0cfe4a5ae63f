package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Exact routes (no normalization needed)
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/api/memes", "/api/memes"},
		{"/api/warnings", "/api/warnings"},
		{"/api/warnings/seen", "/api/warnings/seen"},
		{"/api/mutes", "/api/mutes"},
		{"/api/reports/content", "/api/reports/content"},
		{"/api/reports/user", "/api/reports/user"},
		{"/api/suspension/refresh", "/api/suspension/refresh"},
		{"/api/auth/check", "/api/auth/check"},
		{"/_mod/reports", "/_mod/reports"},
		{"/_mod/reported-users", "/_mod/reported-users"},
		{"/_mod/stats", "/_mod/stats"},

		// Memes and comments with IDs
		{"/api/memes/abc123", "/api/memes/:id"},
		{"/api/memes/abc123/comments", "/api/memes/:id/comments"},

		// Viewer mutes
		{"/api/mutes/user456", "/api/mutes/:id"},

		// Warning dismissal
		{"/api/warnings/abc123/dismiss", "/api/warnings/:id/dismiss"},

		// Moderation routes with IDs
		{"/_mod/reports/abc123/status", "/_mod/reports/:id/status"},
		{"/_mod/users/user456", "/_mod/users/:id"},
		{"/_mod/users/user456/warn", "/_mod/users/:id/warn"},
		{"/_mod/users/user456/strike", "/_mod/users/:id/strike"},
		{"/_mod/users/user456/mute", "/_mod/users/:id/mute"},
		{"/_mod/users/user456/suspend", "/_mod/users/:id/suspend"},
		{"/_mod/users/user456/unmute", "/_mod/users/:id/unmute"},
		{"/_mod/users/user456/unsuspend", "/_mod/users/:id/unsuspend"},
		{"/_mod/users/user456/history", "/_mod/users/:id/history"},
		{"/_mod/users/user456/status", "/_mod/users/:id/status"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePath(tt.input))
		})
	}
}

package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// Each function returns the current count; a nil function disables that gauge.
type StatsSource struct {
	PendingContentReportCount func() int
	PendingUserReportCount    func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.PendingContentReportCount != nil {
		PendingContentReports.Set(float64(src.PendingContentReportCount()))
	}
	if src.PendingUserReportCount != nil {
		PendingUserReports.Set(float64(src.PendingUserReportCount()))
	}
}

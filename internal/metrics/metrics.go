package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend poller metrics
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twlive_checks_total",
		Help: "Watch-page checks by result (live, upcoming, off, http_error, error)",
	}, []string{"result"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "twlive_check_duration_seconds",
		Help:    "Duration of a single watch-page check",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	liveVideos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twlive_live_videos",
		Help: "Videos found live in the most recent poll cycle",
	})

	watchedVideos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twlive_watched_videos",
		Help: "Registered videos in the most recent poll cycle",
	})

	pollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twlive_poll_cycles_total",
		Help: "Poll cycles by outcome",
	}, []string{"outcome"})

	// Dashboard metrics
	refreshCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twlive_dashboard_refresh_total",
		Help: "Dashboard refresh cycles by outcome (ok, failed, discarded)",
	}, []string{"outcome"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "twlive_dashboard_refresh_duration_seconds",
		Help:    "Duration of a dashboard refresh cycle",
		Buckets: prometheus.DefBuckets,
	})

	suppressedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twlive_dashboard_suppressed_ticks_total",
		Help: "Scheduler ticks dropped because a refresh was still in flight",
	})
)

// Check result labels.
const (
	ResultLive      = "live"
	ResultUpcoming  = "upcoming"
	ResultOff       = "off"
	ResultHTTPError = "http_error"
	ResultError     = "error"
)

// Cycle outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// RecordCheck counts one watch-page check.
func RecordCheck(result string, d time.Duration) {
	checksTotal.WithLabelValues(result).Inc()
	checkDuration.Observe(d.Seconds())
}

// RecordPollCycle records the result of a complete poll cycle. watched and live
// are ignored for failed cycles.
func RecordPollCycle(outcome string, watched, live int) {
	pollCyclesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		watchedVideos.Set(float64(watched))
		liveVideos.Set(float64(live))
	}
}

// RecordRefresh counts one dashboard refresh cycle.
func RecordRefresh(outcome string, d time.Duration) {
	refreshCyclesTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(d.Seconds())
}

// IncrementSuppressedTicks counts a scheduler tick dropped by the in-flight guard.
func IncrementSuppressedTicks() {
	suppressedTicksTotal.Inc()
}

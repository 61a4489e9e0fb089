// Package observability holds the service-level Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	scoredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "scoring",
		Name:      "events_scored_total",
		Help:      "Number of activity events scored, labeled by category and outcome.",
	}, []string{"category", "outcome"})

	pointsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamification_service",
		Subsystem: "scoring",
		Name:      "points_awarded",
		Help:      "Distribution of final point totals per scored event.",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
	}, []string{"category"})

	unlockCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "achievements",
		Name:      "unlocks_total",
		Help:      "Number of achievement unlocks emitted, labeled by key.",
	}, []string{"achievement_key"})

	scorePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gamification_service",
		Subsystem: "persistence",
		Name:      "last_score_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent score committed to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(scoredCounter, pointsHistogram, unlockCounter, scorePersistGauge)
}

// RecordScored counts one scoring attempt.
func RecordScored(category, outcome string) {
	scoredCounter.WithLabelValues(category, outcome).Inc()
}

// RecordPoints observes the final total of a successful calculation.
func RecordPoints(category string, total int64) {
	pointsHistogram.WithLabelValues(category).Observe(float64(total))
}

// RecordUnlock counts one achievement unlock.
func RecordUnlock(key string) {
	unlockCounter.WithLabelValues(key).Inc()
}

// RecordScorePersisted updates the persistence watermark gauge.
func RecordScorePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	scorePersistGauge.Set(float64(ts.Unix()))
}

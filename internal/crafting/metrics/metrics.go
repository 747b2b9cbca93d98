// Package metrics exposes Prometheus collectors for market data fetches.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "craftplanner"
	subsystem = "market"
)

// FetchCollector records market fetch attempts, retries, failures and
// durations per region.
type FetchCollector struct {
	attempts       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	regionFailures *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewFetchCollector creates a new collector. Call Register to expose it.
func NewFetchCollector() *FetchCollector {
	return &FetchCollector{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fetch_attempts_total",
				Help:      "Total number of market fetch attempts by region",
			},
			[]string{"region"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fetch_retries_total",
				Help:      "Total number of market fetch retries by region and reason",
			},
			[]string{"region", "reason"},
		),
		regionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "region_failures_total",
				Help:      "Total number of regions that failed after all retries",
			},
			[]string{"region"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fetch_duration_seconds",
				Help:      "Market fetch attempt duration distribution",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"region"},
		),
	}
}

// Register registers all collectors with reg.
func (c *FetchCollector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{c.attempts, c.retries, c.regionFailures, c.duration} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// RecordAttempt counts one fetch attempt.
func (c *FetchCollector) RecordAttempt(region string) {
	c.attempts.WithLabelValues(region).Inc()
}

// RecordRetry counts one retry.
func (c *FetchCollector) RecordRetry(region, reason string) {
	c.retries.WithLabelValues(region, reason).Inc()
}

// RecordRegionFailure counts a region given up on.
func (c *FetchCollector) RecordRegionFailure(region string) {
	c.regionFailures.WithLabelValues(region).Inc()
}

// RecordDuration observes the duration of one attempt.
func (c *FetchCollector) RecordDuration(region string, d time.Duration) {
	c.duration.WithLabelValues(region).Observe(d.Seconds())
}

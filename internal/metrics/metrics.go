// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsTotal            *prometheus.CounterVec
	bytesTotal            prometheus.Counter
	fetchDurationSeconds  prometheus.Histogram
	fetchAttemptsTotal    prometheus.Counter
	rateLimitDelaySeconds prometheus.Histogram
	activeWorkers         prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call multiple times.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Terminal item outcomes, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		bytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_bytes_total",
				Help: "Total payload bytes downloaded from the archive.",
			},
		)
		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Wall-clock duration of a single item fetch, retries included.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		)
		fetchAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "HTTP attempts issued against the archive, retries included.",
			},
		)
		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Delay injected by the shared rate limiter.",
				Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 60},
			},
		)
		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Workers currently processing an item.",
			},
		)
	})
}

// RecordOutcome increments the per-outcome item counter.
func RecordOutcome(outcome string) {
	Init()
	itemsTotal.WithLabelValues(outcome).Inc()
}

// RecordBytes adds downloaded payload bytes.
func RecordBytes(n int64) {
	Init()
	if n > 0 {
		bytesTotal.Add(float64(n))
	}
}

// ObserveFetchDuration records the total duration of one item fetch.
func ObserveFetchDuration(d time.Duration) {
	Init()
	fetchDurationSeconds.Observe(d.Seconds())
}

// RecordAttempts adds HTTP attempts for one item fetch.
func RecordAttempts(n int) {
	Init()
	if n > 0 {
		fetchAttemptsTotal.Add(float64(n))
	}
}

// ObserveRateLimitDelay records time a worker spent blocked in the limiter.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	Init()
	activeWorkers.Inc()
}

// WorkerStopped decrements the active worker gauge.
func WorkerStopped() {
	Init()
	activeWorkers.Dec()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

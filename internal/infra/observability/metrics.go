package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bill tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	billsPaid        *prometheus.CounterVec
	syncFailures     *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	remindersEmitted prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids
// "duplicate collector" panics when NewMetrics is called more than
// once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billminder_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billminder_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		billsPaid: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billminder_bills_paid_total",
				Help: "Total bill settlements by frequency.",
			},
			[]string{"frequency"},
		),
		syncFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billminder_remote_sync_failures_total",
				Help: "Dropped remote mirror operations.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billminder_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billminder_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		remindersEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billminder_reminders_total",
				Help: "Due-date reminders produced by the scan.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrBillPaid counts a settlement by frequency.
func (m *Metrics) IncrBillPaid(frequency string) {
	m.billsPaid.WithLabelValues(frequency).Inc()
}

// IncrSyncFailure counts a dropped remote mirror operation.
func (m *Metrics) IncrSyncFailure(operation string) {
	m.syncFailures.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrReminder counts one emitted reminder.
func (m *Metrics) IncrReminder() {
	m.remindersEmitted.Inc()
}

// SyncFailureCount returns the current dropped-mirror count for an
// operation, used by tests and the health endpoint.
func (m *Metrics) SyncFailureCount(operation string) float64 {
	return getCounterValue(m.syncFailures, operation)
}

// getCounterValue extracts the current float64 value from a CounterVec
// for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	metric := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}

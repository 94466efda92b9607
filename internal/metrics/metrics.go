// Package metrics exposes the Prometheus instruments of the rewards service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	rewardsComputed    prometheus.Counter
	pointsAwarded      prometheus.Counter
	skippedRecords     prometheus.Counter
	transactionsStored prometheus.Counter
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	snapshotsWritten   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewards_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		rewardsComputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewards_reports_total",
			Help: "Total rewards reports computed.",
		}),
		pointsAwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewards_points_reported_total",
			Help: "Sum of total points across computed reports.",
		}),
		skippedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewards_invalid_records_total",
			Help: "Transactions skipped by the engine because of invalid data.",
		}),
		transactionsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewards_transactions_recorded_total",
			Help: "Transactions recorded through the service.",
		}),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		snapshotsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "rewards_monthly_snapshots_written_total",
			Help: "Monthly reward snapshot rows upserted by the worker.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveRequest(route string, status string, d time.Duration) {
	m.requestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// ReportComputed records one rewards report with its total and the number
// of records the engine could not score.
func (m *Metrics) ReportComputed(totalPoints, skipped int) {
	m.rewardsComputed.Inc()
	m.pointsAwarded.Add(float64(totalPoints))
	m.skippedRecords.Add(float64(skipped))
}

func (m *Metrics) TransactionRecorded() { m.transactionsStored.Inc() }

func (m *Metrics) SnapshotsWritten(n int) { m.snapshotsWritten.Add(float64(n)) }

func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(cache string) { m.cacheHits.WithLabelValues(cache).Inc() }

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(cache string) { m.cacheMisses.WithLabelValues(cache).Inc() }

// Snapshot is a point-in-time summary served by /api/stats.
type Snapshot struct {
	Reports              int64   `json:"reports"`
	PointsReported       int64   `json:"pointsReported"`
	InvalidRecords       int64   `json:"invalidRecords"`
	TransactionsRecorded int64   `json:"transactionsRecorded"`
	CacheHitRate         float64 `json:"cacheHitRate"`
}

// Snapshot reads the current counter values for the given cache name.
func (m *Metrics) Snapshot(cache string) Snapshot {
	hits := counterValue(m.cacheHits.WithLabelValues(cache))
	misses := counterValue(m.cacheMisses.WithLabelValues(cache))
	rate := 0.0
	if hits+misses > 0 {
		rate = hits / (hits + misses)
	}
	return Snapshot{
		Reports:              int64(counterValue(m.rewardsComputed)),
		PointsReported:       int64(counterValue(m.pointsAwarded)),
		InvalidRecords:       int64(counterValue(m.skippedRecords)),
		TransactionsRecorded: int64(counterValue(m.transactionsStored)),
		CacheHitRate:         rate,
	}
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	if out.Counter != nil && out.Counter.Value != nil {
		return *out.Counter.Value
	}
	return 0
}

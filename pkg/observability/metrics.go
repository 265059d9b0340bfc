package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Permission engine metrics
	PermissionChecksTotal *prometheus.CounterVec
	RoleCacheHitsTotal    prometheus.Counter
	RoleCacheMissesTotal  prometheus.Counter

	// Dual-write metrics
	SyncAttemptsTotal *prometheus.CounterVec
	SyncDuration      *prometheus.HistogramVec
	SyncPendingGauge  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_permission_checks_total",
				Help: "Permission checks by outcome",
			},
			[]string{"check", "outcome"},
		),
		RoleCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_role_cache_hits_total",
			Help: "Role resolution cache hits",
		}),
		RoleCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_role_cache_misses_total",
			Help: "Role resolution cache misses",
		}),
		SyncAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_dualwrite_sync_attempts_total",
				Help: "Dual-write projections to the secondary store by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_dualwrite_sync_duration_seconds",
				Help:    "Dual-write projection duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity"},
		),
		SyncPendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_dualwrite_pending_records",
			Help: "Secondary-store records awaiting reconciliation",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.SyncAttemptsTotal,
		m.SyncDuration,
		m.SyncPendingGauge,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed HTTP request
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveSync records a dual-write projection attempt
func (m *Metrics) ObserveSync(entity, outcome string, duration time.Duration) {
	m.SyncAttemptsTotal.WithLabelValues(entity, outcome).Inc()
	m.SyncDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

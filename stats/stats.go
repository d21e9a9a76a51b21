// Package stats fills the role the teacher's hand-rolled statsd-backed
// stats package plays (stats/proxy_stats.go's request-count/latency
// tracker) but exposes it as Prometheus metrics instead — the
// domain-stack choice SPEC_FULL.md makes for this repo's `/metrics`
// surface, grounded on github.com/prometheus/client_golang.
package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the process-wide metrics registry, mirroring the teacher's
// single Prunner.Core instance wired in once at startup.
type Stats struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	extentBytes     prometheus.Gauge
}

// New builds a fresh registry with all counters registered.
func New() *Stats {
	reg := prometheus.NewRegistry()
	s := &Stats{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobemu",
			Name:      "requests_total",
			Help:      "Total number of requests handled, by operation and HTTP status.",
		}, []string{"operation", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blobemu",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobemu",
			Name:      "errors_total",
			Help:      "Total number of requests that failed, by error code.",
		}, []string{"code"}),
		extentBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "blobemu",
			Name:      "extent_bytes_total",
			Help:      "Total bytes currently held by the extent store.",
		}),
	}
	return s
}

// Observe records one completed request (spec §4.5's per-operation
// accounting, the counterpart of the teacher's doAdd(".n"/".μs")).
func (s *Stats) Observe(operation string, status int, dur time.Duration) {
	s.requestsTotal.WithLabelValues(operation, statusClass(status)).Inc()
	s.requestDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

// ObserveError records a failed request by its wire error code.
func (s *Stats) ObserveError(code string) {
	s.errorsTotal.WithLabelValues(code).Inc()
}

// SetExtentBytes publishes the extent store's current total size.
func (s *Stats) SetExtentBytes(n int64) {
	s.extentBytes.Set(float64(n))
}

// Handler exposes the registry for scraping at /metrics.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Package metrics defines the gateway's Prometheus instrumentation.
// Grounded on teacher internal/api/router.go's package-level
// promauto.NewCounterVec(s3RequestsTotal) style: metrics are registered
// once at package init against the default registry, and internal/gateway
// calls the Observe*/Inc helpers inline from the request pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldengate_requests_total",
		Help: "Total number of requests the gateway handled, by matched ruleset and outcome.",
	}, []string{"ruleset", "status"})

	filterDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldengate_filter_denied_total",
		Help: "Total number of requests rejected by a ruleset's filter stage.",
	}, []string{"ruleset"})

	timeLockActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goldengate_timelock_active",
		Help: "Number of time-lock grants currently pending release.",
	})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goldengate_upstream_duration_seconds",
		Help:    "Latency of proxied upstream requests, by matched ruleset.",
		Buckets: prometheus.DefBuckets,
	}, []string{"ruleset"})
)

// RequestOutcome labels that feed RecordRequest's "status" dimension.
const (
	StatusOK       = "ok"
	StatusDenied   = "denied"
	StatusDeferred = "deferred"
	StatusNoMatch  = "no_match"
	StatusError    = "error"
)

// RecordRequest increments the per-ruleset/outcome request counter.
// ruleset is "" for requests no ruleset matched.
func RecordRequest(ruleset, status string) {
	requestsTotal.WithLabelValues(ruleset, status).Inc()
}

// RecordFilterDenied increments the per-ruleset filter-rejection counter.
func RecordFilterDenied(ruleset string) {
	filterDeniedTotal.WithLabelValues(ruleset).Inc()
}

// SetTimeLockActive sets the current count of pending time-lock grants.
func SetTimeLockActive(n int) {
	timeLockActive.Set(float64(n))
}

// ObserveUpstreamDuration records how long a proxied call to the upstream
// took for the given ruleset.
func ObserveUpstreamDuration(ruleset string, d time.Duration) {
	upstreamDuration.WithLabelValues(ruleset).Observe(d.Seconds())
}

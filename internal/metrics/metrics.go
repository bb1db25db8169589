package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortcode"

// Lookup and allocation results used as label values.
const (
	ResultHit       = "hit"
	ResultMiss      = "miss"
	ResultError     = "error"
	ResultCreated   = "created"
	ResultExhausted = "exhausted"
	ResultRecorded  = "recorded"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

// Metrics holds the service's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPInflight   prometheus.Gauge
	CacheLookups   *prometheus.CounterVec
	DurableLookups *prometheus.CounterVec
	Allocations    *prometheus.CounterVec
	Clicks         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache reads by result.",
		}, []string{"result"}),
		DurableLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durable_lookups_total",
			Help:      "Durable store reads after a cache miss, by result.",
		}, []string{"result"}),
		Allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Shorten requests by strategy and result.",
		}, []string{"strategy", "result"}),
		Clicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Click counter increments by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}

	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) DurableLookup(result string) {
	if m == nil {
		return
	}

	m.DurableLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Allocation(strategy, result string) {
	if m == nil {
		return
	}

	m.Allocations.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) Click(result string) {
	if m == nil {
		return
	}

	m.Clicks.WithLabelValues(result).Inc()
}

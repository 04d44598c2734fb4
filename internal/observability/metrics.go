// Package observability provides Prometheus metrics for the request
// pipeline: upstream calls, retries, cache effectiveness, rate limiting and
// queue pressure.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nftdata/internal/queue"
)

// Metrics collects pipeline metrics. It satisfies restclient.Hooks so it
// can be handed straight to the REST clients.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamRetries  *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics. Pass nil to use
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftdata_upstream_requests_total",
			Help: "Logical upstream requests by service, endpoint and final status.",
		}, []string{"service", "endpoint", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nftdata_upstream_request_duration_seconds",
			Help:    "Upstream request duration including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "endpoint"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftdata_upstream_retries_total",
			Help: "Failed upstream attempts that were reported before a retry or final failure.",
		}, []string{"service", "endpoint"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftdata_cache_hits_total",
			Help: "Cache hits by service.",
		}, []string{"service"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftdata_cache_misses_total",
			Help: "Cache misses by service.",
		}, []string{"service"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftdata_rate_limited_total",
			Help: "Requests rejected by the local rate limiter, by resource.",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		m.upstreamRequests,
		m.upstreamDuration,
		m.upstreamRetries,
		m.cacheHits,
		m.cacheMisses,
		m.rateLimited,
	)

	return m
}

// OnRequest implements restclient.Hooks.
func (m *Metrics) OnRequest(service, endpoint string, statusCode int, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(service, endpoint, strconv.Itoa(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// OnRetry implements restclient.Hooks.
func (m *Metrics) OnRetry(service, endpoint string, attempt int, err error) {
	m.upstreamRetries.WithLabelValues(service, endpoint).Inc()
}

// CacheHit records a cache hit for the given service.
func (m *Metrics) CacheHit(service string) {
	m.cacheHits.WithLabelValues(service).Inc()
}

// CacheMiss records a cache miss for the given service.
func (m *Metrics) CacheMiss(service string) {
	m.cacheMisses.WithLabelValues(service).Inc()
}

// RateLimited records a local rate limit rejection for the given resource.
func (m *Metrics) RateLimited(resource string) {
	m.rateLimited.WithLabelValues(resource).Inc()
}

// RegisterQueueGauges exposes the queue's in-flight and waiting counts as
// gauges. Pass nil to use the default registerer.
func RegisterQueueGauges(reg prometheus.Registerer, q *queue.Queue) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nftdata_queue_in_flight",
		Help: "Tasks currently executing in the request queue.",
	}, func() float64 { return float64(q.InFlight()) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nftdata_queue_waiting",
		Help: "Tasks waiting for a concurrency slot in the request queue.",
	}, func() float64 { return float64(q.Waiting()) }))
}

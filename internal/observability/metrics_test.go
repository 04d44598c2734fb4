package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"nftdata/internal/queue"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OnRequest("reservoir", "/collections/v7", 200, 120*time.Millisecond)
	m.OnRequest("reservoir", "/collections/v7", 200, 80*time.Millisecond)
	m.OnRetry("reservoir", "/collections/v7", 1, errors.New("boom"))
	m.CacheHit("reservoir")
	m.CacheMiss("reservoir")
	m.RateLimited("coingecko")

	assert.InDelta(t, 2, testutil.ToFloat64(
		m.upstreamRequests.WithLabelValues("reservoir", "/collections/v7", "200")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(
		m.upstreamRetries.WithLabelValues("reservoir", "/collections/v7")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheHits.WithLabelValues("reservoir")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheMisses.WithLabelValues("reservoir")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited.WithLabelValues("coingecko")), 1e-9)
}

func TestQueueGaugesRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterQueueGauges(reg, queue.New(2))

	families, err := reg.Gather()
	assert.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "nftdata_queue_in_flight")
	assert.Contains(t, names, "nftdata_queue_waiting")
}

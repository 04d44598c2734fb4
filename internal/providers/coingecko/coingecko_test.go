package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftdata/internal/cache"
	"nftdata/internal/core"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
)

func newService(t *testing.T, handler http.HandlerFunc) (*Service, *atomic.Int64) {
	t.Helper()

	calls := &atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	store := cache.NewMemoryStore(cache.MemoryConfig{})
	limiter := ratelimit.New(ratelimit.Config{MaxRequests: 100, Window: time.Minute})
	q := queue.New(2)

	return New(Config{BaseURL: server.URL}, store, limiter, q, nil), calls
}

func TestGetPrice(t *testing.T) {
	service, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"ethereum": {"usd": 3100.25}}`))
	})

	price, err := service.GetPrice(context.Background(), "Ethereum", "USD")
	require.NoError(t, err)

	assert.Equal(t, "ethereum", price.Token)
	assert.Equal(t, "usd", price.Currency)
	assert.InDelta(t, 3100.25, price.Value, 1e-9)
	assert.False(t, price.FetchedAt.IsZero())
}

func TestGetPriceCached(t *testing.T) {
	service, calls := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ethereum": {"usd": 3100.25}}`))
	})

	ctx := context.Background()
	_, err := service.GetPrice(ctx, "ethereum", "usd")
	require.NoError(t, err)
	_, err = service.GetPrice(ctx, "ethereum", "usd")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
}

func TestGetPriceUnknownToken(t *testing.T) {
	service, calls := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := service.GetPrice(context.Background(), "notacoin", "usd")
	require.Error(t, err)

	var svcErr *core.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, core.ErrorTypeNotFound, svcErr.Type)

	// A missing quote must not be cached.
	_, err = service.GetPrice(context.Background(), "notacoin", "usd")
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetPriceValidation(t *testing.T) {
	service, calls := newService(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := service.GetPrice(context.Background(), "", "usd")
	require.Error(t, err)
	_, err = service.GetPrice(context.Background(), "ethereum", "")
	require.Error(t, err)
	assert.Equal(t, int64(0), calls.Load())
}

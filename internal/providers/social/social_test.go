package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftdata/internal/cache"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
)

const collection = "0xcafe000000000000000000000000000000000001"

func newService(t *testing.T, twitterHandler, discordHandler http.HandlerFunc) (*Service, *atomic.Int64, *atomic.Int64) {
	t.Helper()

	twitterCalls := &atomic.Int64{}
	twitterServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		twitterCalls.Add(1)
		twitterHandler(w, r)
	}))
	t.Cleanup(twitterServer.Close)

	discordCalls := &atomic.Int64{}
	discordServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		discordCalls.Add(1)
		discordHandler(w, r)
	}))
	t.Cleanup(discordServer.Close)

	store := cache.NewMemoryStore(cache.MemoryConfig{})
	limiter := ratelimit.New(ratelimit.Config{MaxRequests: 100, Window: time.Minute})
	q := queue.New(2)

	service := New(Config{
		TwitterBaseURL: twitterServer.URL,
		DiscordBaseURL: discordServer.URL,
		Accounts: map[string]Links{
			collection: {TwitterHandle: "coolcats", DiscordGuildID: "123456"},
		},
	}, store, limiter, q, nil)

	return service, twitterCalls, discordCalls
}

func twitterOK(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"data": {"public_metrics": {
		"followers_count": 250000,
		"tweet_count": 4200,
		"listed_count": 2500
	}}}`))
}

func discordOK(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{
		"approximate_member_count": 80000,
		"approximate_presence_count": 9000
	}`))
}

func TestGetMetricsMergesSections(t *testing.T) {
	service, _, _ := newService(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/by/username/coolcats", r.URL.Path)
			twitterOK(w, r)
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/guilds/123456/preview", r.URL.Path)
			discordOK(w, r)
		},
	)

	metrics, err := service.GetMetrics(context.Background(), collection)
	require.NoError(t, err)

	assert.Equal(t, collection, metrics.Collection)
	assert.Equal(t, int64(250000), metrics.Twitter.Followers)
	assert.Equal(t, int64(4200), metrics.Twitter.Tweets)
	assert.InDelta(t, 0.01, metrics.Twitter.Engagement, 1e-9)
	assert.Equal(t, int64(80000), metrics.Discord.Members)
	assert.Equal(t, int64(9000), metrics.Discord.OnlineMembers)
}

func TestFailedSectionDegradesToZero(t *testing.T) {
	service, _, _ := newService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "user not found"}`))
		},
		discordOK,
	)

	metrics, err := service.GetMetrics(context.Background(), collection)
	require.NoError(t, err, "a failed section must not fail the merge")

	assert.Zero(t, metrics.Twitter.Followers)
	assert.Equal(t, int64(80000), metrics.Discord.Members)
}

func TestMetricsCached(t *testing.T) {
	service, twitterCalls, discordCalls := newService(t, twitterOK, discordOK)

	ctx := context.Background()
	_, err := service.GetMetrics(ctx, collection)
	require.NoError(t, err)
	_, err = service.GetMetrics(ctx, collection)
	require.NoError(t, err)

	assert.Equal(t, int64(1), twitterCalls.Load())
	assert.Equal(t, int64(1), discordCalls.Load())
}

func TestUnmappedCollectionGetsZeroRecord(t *testing.T) {
	service, twitterCalls, discordCalls := newService(t, twitterOK, discordOK)

	metrics, err := service.GetMetrics(context.Background(), "0xunmapped")
	require.NoError(t, err)

	assert.Zero(t, metrics.Twitter.Followers)
	assert.Zero(t, metrics.Discord.Members)
	assert.Equal(t, int64(0), twitterCalls.Load())
	assert.Equal(t, int64(0), discordCalls.Load())
}

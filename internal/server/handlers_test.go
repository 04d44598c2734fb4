package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftdata/internal/core"
)

const bayc = "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"

type stubMarket struct {
	collection *core.Collection
	err        error

	lastAddresses []string
	cancelledID   string
}

func (s *stubMarket) GetCollection(ctx context.Context, address string) (*core.Collection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.collection, nil
}

func (s *stubMarket) ListCollections(ctx context.Context, limit int) ([]core.Collection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []core.Collection{*s.collection}, nil
}

func (s *stubMarket) GetCollections(ctx context.Context, addresses []string) ([]core.Collection, error) {
	s.lastAddresses = addresses
	if s.err != nil {
		return nil, s.err
	}
	return []core.Collection{*s.collection}, nil
}

func (s *stubMarket) GetFloorListings(ctx context.Context, address string, limit int) ([]core.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []core.Listing{{Collection: address, TokenID: "1", PriceETH: 12.5}}, nil
}

func (s *stubMarket) GetActivity(ctx context.Context, address string, limit int) ([]core.Activity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []core.Activity{{Collection: address, Kind: "sale"}}, nil
}

func (s *stubMarket) CreateOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.Order{ID: "order-1", Status: "active", Collection: req.Collection, Side: req.Side}, nil
}

func (s *stubMarket) CancelOrder(ctx context.Context, orderID string) error {
	s.cancelledID = orderID
	return s.err
}

func (s *stubMarket) ExecuteBuy(ctx context.Context, req core.BuyRequest) (*core.BuyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.BuyResult{TxHash: "0xabc", Status: "complete", Price: 12.5}, nil
}

type stubPrice struct {
	price *core.Price
	err   error
}

func (s *stubPrice) GetPrice(ctx context.Context, token, currency string) (*core.Price, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.price, nil
}

type stubSocial struct {
	metrics *core.SocialMetrics
	err     error
}

func (s *stubSocial) GetMetrics(ctx context.Context, address string) (*core.SocialMetrics, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.metrics, nil
}

func newTestServer(market *stubMarket, price *stubPrice, social *stubSocial) *Server {
	if market == nil {
		market = &stubMarket{collection: &core.Collection{Address: bayc, Name: "Bored Ape Yacht Club"}}
	}
	if price == nil {
		price = &stubPrice{price: &core.Price{Token: "ethereum", Currency: "usd", Value: 3500}}
	}
	if social == nil {
		social = &stubSocial{metrics: &core.SocialMetrics{Collection: bayc}}
	}
	return New(NewHandler(market, price, social), &Config{})
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetCollection(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/v1/collections/"+bayc, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got core.Collection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, bayc, got.Address)
	assert.Equal(t, "Bored Ape Yacht Club", got.Name)
}

func TestGetCollectionInvalidAddress(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/v1/collections/not-an-address", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestGetCollectionNotFound(t *testing.T) {
	market := &stubMarket{err: core.NewNotFoundError("collection not found")}
	rec := doRequest(t, newTestServer(market, nil, nil), http.MethodGet, "/v1/collections/"+bayc, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found_error")
}

func TestListCollectionsByAddresses(t *testing.T) {
	market := &stubMarket{collection: &core.Collection{Address: bayc, Name: "BAYC"}}
	srv := newTestServer(market, nil, nil)

	other := "0xed5af388653567af2f388e6224dc7c4b3241c544"
	rec := doRequest(t, srv, http.MethodGet, "/v1/collections?addresses="+bayc+","+other, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{bayc, other}, market.lastAddresses)
}

func TestRateLimitErrorSetsRetryAfter(t *testing.T) {
	market := &stubMarket{err: core.NewRateLimitError("reservoir", "rate limit exceeded", 30*time.Second)}
	rec := doRequest(t, newTestServer(market, nil, nil), http.MethodGet, "/v1/collections/"+bayc, "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_error")
}

func TestCreateOrder(t *testing.T) {
	body := `{"collection": "` + bayc + `", "token_id": "42", "side": "buy", "price_eth": 10}`
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodPost, "/v1/orders", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	var order core.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "order-1", order.ID)
}

func TestCancelOrder(t *testing.T) {
	market := &stubMarket{collection: &core.Collection{Address: bayc, Name: "BAYC"}}
	rec := doRequest(t, newTestServer(market, nil, nil), http.MethodDelete, "/v1/orders/order-9", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order-9", market.cancelledID)
}

func TestExecuteBuy(t *testing.T) {
	body := `{"collection": "` + bayc + `", "token_id": "42", "taker": "0x1111111111111111111111111111111111111111"}`
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodPost, "/v1/buy", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var result core.BuyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "0xabc", result.TxHash)
}

func TestGetPriceDefaults(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/v1/market/price", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var price core.Price
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &price))
	assert.Equal(t, "ethereum", price.Token)
	assert.InDelta(t, 3500, price.Value, 1e-9)
}

func TestGetSocialMetrics(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/v1/social/"+bayc, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var metrics core.SocialMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Equal(t, bayc, metrics.Collection)
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}

func TestUpstreamErrorMapsToBadGateway(t *testing.T) {
	market := &stubMarket{err: core.NewUpstreamError("reservoir", 502, "bad gateway", nil)}
	rec := doRequest(t, newTestServer(market, nil, nil), http.MethodGet, "/v1/collections/"+bayc, "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_error")
}

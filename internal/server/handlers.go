package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"nftdata/internal/core"
	"nftdata/internal/version"
)

// MarketService is the marketplace surface the handlers depend on.
type MarketService interface {
	GetCollection(ctx context.Context, address string) (*core.Collection, error)
	ListCollections(ctx context.Context, limit int) ([]core.Collection, error)
	GetCollections(ctx context.Context, addresses []string) ([]core.Collection, error)
	GetFloorListings(ctx context.Context, address string, limit int) ([]core.Listing, error)
	GetActivity(ctx context.Context, address string, limit int) ([]core.Activity, error)
	CreateOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	ExecuteBuy(ctx context.Context, req core.BuyRequest) (*core.BuyResult, error)
}

// PriceService resolves token spot prices.
type PriceService interface {
	GetPrice(ctx context.Context, token, currency string) (*core.Price, error)
}

// SocialService resolves community metrics for a collection.
type SocialService interface {
	GetMetrics(ctx context.Context, address string) (*core.SocialMetrics, error)
}

// Handler holds the services used by the HTTP handlers
type Handler struct {
	market MarketService
	price  PriceService
	social SocialService
}

// NewHandler creates a new handler with the given services
func NewHandler(market MarketService, price PriceService, social SocialService) *Handler {
	return &Handler{
		market: market,
		price:  price,
		social: social,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// ListCollections handles GET /v1/collections. With an "addresses" query
// parameter it resolves that set in batches; without one it returns the top
// collections by 1-day volume.
func (h *Handler) ListCollections(c echo.Context) error {
	ctx := c.Request().Context()

	if raw := c.QueryParam("addresses"); raw != "" {
		addresses := strings.Split(raw, ",")
		for _, address := range addresses {
			if err := validateAddress(address); err != nil {
				return h.handleError(c, err)
			}
		}
		collections, err := h.market.GetCollections(ctx, addresses)
		if err != nil {
			return h.handleError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"collections": collections})
	}

	collections, err := h.market.ListCollections(ctx, queryLimit(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"collections": collections})
}

// GetCollection handles GET /v1/collections/:address
func (h *Handler) GetCollection(c echo.Context) error {
	address := c.Param("address")
	if err := validateAddress(address); err != nil {
		return h.handleError(c, err)
	}

	collection, err := h.market.GetCollection(c.Request().Context(), address)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, collection)
}

// GetFloorListings handles GET /v1/collections/:address/listings
func (h *Handler) GetFloorListings(c echo.Context) error {
	address := c.Param("address")
	if err := validateAddress(address); err != nil {
		return h.handleError(c, err)
	}

	listings, err := h.market.GetFloorListings(c.Request().Context(), address, queryLimit(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"listings": listings})
}

// GetActivity handles GET /v1/collections/:address/activity
func (h *Handler) GetActivity(c echo.Context) error {
	address := c.Param("address")
	if err := validateAddress(address); err != nil {
		return h.handleError(c, err)
	}

	activity, err := h.market.GetActivity(c.Request().Context(), address, queryLimit(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"activity": activity})
}

// CreateOrder handles POST /v1/orders
func (h *Handler) CreateOrder(c echo.Context) error {
	var req core.OrderRequest
	if err := c.Bind(&req); err != nil {
		return h.handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	order, err := h.market.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// CancelOrder handles DELETE /v1/orders/:id
func (h *Handler) CancelOrder(c echo.Context) error {
	if err := h.market.CancelOrder(c.Request().Context(), c.Param("id")); err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

// ExecuteBuy handles POST /v1/buy
func (h *Handler) ExecuteBuy(c echo.Context) error {
	var req core.BuyRequest
	if err := c.Bind(&req); err != nil {
		return h.handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	result, err := h.market.ExecuteBuy(c.Request().Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetPrice handles GET /v1/market/price
func (h *Handler) GetPrice(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = "ethereum"
	}
	currency := c.QueryParam("currency")
	if currency == "" {
		currency = "usd"
	}

	price, err := h.price.GetPrice(c.Request().Context(), token, currency)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, price)
}

// GetSocialMetrics handles GET /v1/social/:address
func (h *Handler) GetSocialMetrics(c echo.Context) error {
	address := c.Param("address")
	if err := validateAddress(address); err != nil {
		return h.handleError(c, err)
	}

	metrics, err := h.social.GetMetrics(c.Request().Context(), address)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// handleError converts service errors to HTTP responses
func (h *Handler) handleError(c echo.Context, err error) error {
	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.RetryAfter > 0 {
			seconds := int(svcErr.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		return c.JSON(svcErr.HTTPStatusCode(), svcErr.ToJSON())
	}

	slog.Error("unhandled error",
		"error", err,
		"path", c.Request().URL.Path,
		"request_id", core.GetRequestID(c.Request().Context()),
	)
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"type":    "internal_error",
			"message": "an internal error occurred",
		},
	})
}

// validateAddress sanity-checks an EVM contract address.
func validateAddress(address string) error {
	address = strings.TrimSpace(address)
	if len(address) != 42 || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return core.NewInvalidRequestError("invalid collection address: "+address, nil)
	}
	for _, r := range strings.ToLower(address[2:]) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return core.NewInvalidRequestError("invalid collection address: "+address, nil)
		}
	}
	return nil
}

// queryLimit parses the optional "limit" query parameter. Services clamp the
// value themselves; 0 means "use the default".
func queryLimit(c echo.Context) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

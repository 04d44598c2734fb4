package reservoir

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"nftdata/internal/core"
)

// orderResponse is the upstream shape for order creation.
type orderResponse struct {
	Order struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		CreatedAt string `json:"createdAt"`
	} `json:"order"`
}

// CreateOrder submits a new buy or sell order. Orders bypass the cache.
func (s *Service) CreateOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	if req.Collection == "" || req.TokenID == "" {
		return nil, core.NewInvalidRequestError("order requires collection and token id", nil)
	}
	side := strings.ToLower(req.Side)
	if side != "buy" && side != "sell" {
		return nil, core.NewInvalidRequestError("order side must be \"buy\" or \"sell\"", nil)
	}

	payload := map[string]any{
		"token":      strings.ToLower(req.Collection) + ":" + req.TokenID,
		"side":       side,
		"weiPrice":   ethToWei(req.PriceETH),
		"expiration": req.Expiration,
	}

	var resp orderResponse
	if err := s.submit(ctx, http.MethodPost, "/order/v4", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Order.ID == "" {
		return nil, core.NewInvalidRequestError("malformed order response from reservoir", nil)
	}

	createdAt, _ := time.Parse(time.RFC3339, resp.Order.CreatedAt)
	return &core.Order{
		ID:         resp.Order.ID,
		Status:     resp.Order.Status,
		Collection: strings.ToLower(req.Collection),
		TokenID:    req.TokenID,
		Side:       side,
		PriceETH:   req.PriceETH,
		CreatedAt:  createdAt,
	}, nil
}

// CancelOrder cancels an existing order by id.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return core.NewInvalidRequestError("order id is required", nil)
	}

	payload := map[string]any{
		"orderIds": []string{orderID},
	}
	return s.submit(ctx, http.MethodPost, "/execute/cancel/v3", payload, nil)
}

// buyResponse is the upstream shape for buy execution.
type buyResponse struct {
	Path []struct {
		Quote float64 `json:"quote"`
	} `json:"path"`
	TxHash string `json:"txHash"`
	Status string `json:"status"`
}

// ExecuteBuy executes a direct purchase of a listed token.
func (s *Service) ExecuteBuy(ctx context.Context, req core.BuyRequest) (*core.BuyResult, error) {
	if req.Collection == "" || req.TokenID == "" || req.Taker == "" {
		return nil, core.NewInvalidRequestError("buy requires collection, token id and taker", nil)
	}

	payload := map[string]any{
		"items": []map[string]string{
			{"token": strings.ToLower(req.Collection) + ":" + req.TokenID},
		},
		"taker": strings.ToLower(req.Taker),
	}

	var resp buyResponse
	if err := s.submit(ctx, http.MethodPost, "/execute/buy/v7", payload, &resp); err != nil {
		return nil, err
	}

	result := &core.BuyResult{
		TxHash: resp.TxHash,
		Status: resp.Status,
	}
	if len(resp.Path) > 0 {
		result.Price = resp.Path[0].Quote
	}
	return result, nil
}

// ethToWei converts an ETH amount to a wei string for upstream payloads.
// big.Float avoids the scientific notation and precision loss a plain
// float64 format would produce at 1e18 scale.
func ethToWei(eth float64) string {
	wei := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18))
	n, _ := wei.Int(nil)
	return n.String()
}

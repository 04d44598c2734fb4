package reservoir

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"nftdata/internal/core"
)

// GetCollection fetches a single collection by address.
func (s *Service) GetCollection(ctx context.Context, address string) (*core.Collection, error) {
	body, err := s.fetch(ctx, "/collections/v7", map[string]string{
		"id": strings.ToLower(address),
	}, s.priorityFor(address))
	if err != nil {
		return nil, err
	}

	first := gjson.GetBytes(body, "collections.0")
	if !first.Exists() {
		return nil, core.NewNotFoundError("collection not found: " + address)
	}

	collection, err := s.parseCollection(first)
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// ListCollections fetches the top collections by 1-day volume.
func (s *Service) ListCollections(ctx context.Context, limit int) ([]core.Collection, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	body, err := s.fetch(ctx, "/collections/v7", map[string]string{
		"sortBy": "1DayVolume",
		"limit":  strconv.Itoa(limit),
	}, core.PriorityNormal)
	if err != nil {
		return nil, err
	}

	return s.parseCollections(body)
}

// GetCollections fetches many collections by address. The address set is
// split into fixed-size batches; each batch issues one queued request at the
// highest priority of its members, and results are concatenated in upstream
// order.
func (s *Service) GetCollections(ctx context.Context, addresses []string) ([]core.Collection, error) {
	var collections []core.Collection
	for start := 0; start < len(addresses); start += s.batchSize {
		end := start + s.batchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		body, err := s.fetch(ctx, "/collections/v7", map[string]string{
			"contract": strings.ToLower(strings.Join(batch, ",")),
		}, s.priorityFor(batch...))
		if err != nil {
			return nil, err
		}

		parsed, err := s.parseCollections(body)
		if err != nil {
			return nil, err
		}
		collections = append(collections, parsed...)
	}
	return collections, nil
}

// GetFloorListings fetches the cheapest active listings for a collection.
func (s *Service) GetFloorListings(ctx context.Context, address string, limit int) ([]core.Listing, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	body, err := s.fetch(ctx, "/orders/asks/v5", map[string]string{
		"contracts": strings.ToLower(address),
		"sortBy":    "price",
		"limit":     strconv.Itoa(limit),
	}, s.priorityFor(address))
	if err != nil {
		return nil, err
	}

	listings := make([]core.Listing, 0, limit)
	for _, order := range gjson.GetBytes(body, "orders").Array() {
		listings = append(listings, core.Listing{
			Collection:  strings.ToLower(address),
			TokenID:     order.Get("criteria.data.token.tokenId").String(),
			Seller:      order.Get("maker").String(),
			Marketplace: order.Get("source.name").String(),
			PriceETH:    order.Get("price.amount.native").Float(),
			PriceUSD:    order.Get("price.amount.usd").Float(),
			ValidFrom:   time.Unix(order.Get("validFrom").Int(), 0).UTC(),
			ValidUntil:  time.Unix(order.Get("validUntil").Int(), 0).UTC(),
		})
	}
	return listings, nil
}

// GetActivity fetches recent token-level events for a collection.
func (s *Service) GetActivity(ctx context.Context, address string, limit int) ([]core.Activity, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	body, err := s.fetch(ctx, "/collections/activity/v6", map[string]string{
		"collection": strings.ToLower(address),
		"limit":      strconv.Itoa(limit),
	}, s.priorityFor(address))
	if err != nil {
		return nil, err
	}

	activities := make([]core.Activity, 0, limit)
	for _, event := range gjson.GetBytes(body, "activities").Array() {
		activities = append(activities, core.Activity{
			Collection: strings.ToLower(address),
			TokenID:    event.Get("token.tokenId").String(),
			Kind:       event.Get("type").String(),
			From:       event.Get("fromAddress").String(),
			To:         event.Get("toAddress").String(),
			PriceETH:   event.Get("price.amount.native").Float(),
			Timestamp:  time.Unix(event.Get("timestamp").Int(), 0).UTC(),
		})
	}
	return activities, nil
}

// parseCollections transforms an upstream collections payload.
func (s *Service) parseCollections(body []byte) ([]core.Collection, error) {
	items := gjson.GetBytes(body, "collections").Array()
	collections := make([]core.Collection, 0, len(items))
	for _, item := range items {
		collection, err := s.parseCollection(item)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *collection)
	}
	return collections, nil
}

// parseCollection normalizes one upstream collection object. Address and
// name are required; a payload missing either is malformed and fatal.
func (s *Service) parseCollection(item gjson.Result) (*core.Collection, error) {
	address := strings.ToLower(item.Get("id").String())
	name := item.Get("name").String()
	if address == "" || name == "" {
		return nil, core.NewInvalidRequestError("malformed collection in reservoir response", nil)
	}

	return &core.Collection{
		Address:     address,
		Name:        name,
		Symbol:      item.Get("symbol").String(),
		Description: item.Get("description").String(),
		ImageURL:    item.Get("image").String(),
		TokenCount:  item.Get("tokenCount").Int(),
		HolderCount: item.Get("ownerCount").Int(),
		FloorPrice:  item.Get("floorAsk.price.amount.native").Float(),
		Volume24h:   item.Get("volume.1day").Float(),
		VolumeAll:   item.Get("volume.allTime").Float(),
		Curated:     s.IsCurated(address),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

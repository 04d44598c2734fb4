package core

import "time"

// Priority levels for queued upstream requests. Higher values are dequeued
// first. Curated collections get elevated priority and a longer cache TTL.
const (
	PriorityNormal  = 0
	PriorityCurated = 10
)

// Collection is a normalized NFT collection record as served by the gateway.
// Immutable after construction; built from upstream JSON, never passed back
// to the upstream.
type Collection struct {
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	TokenCount  int64     `json:"token_count"`
	HolderCount int64     `json:"holder_count"`
	FloorPrice  float64   `json:"floor_price"`
	Volume24h   float64   `json:"volume_24h"`
	VolumeAll   float64   `json:"volume_all"`
	Curated     bool      `json:"curated"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Listing is a single active floor listing for a collection.
type Listing struct {
	Collection  string    `json:"collection"`
	TokenID     string    `json:"token_id"`
	Seller      string    `json:"seller"`
	Marketplace string    `json:"marketplace"`
	PriceETH    float64   `json:"price_eth"`
	PriceUSD    float64   `json:"price_usd,omitempty"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until,omitempty"`
}

// Activity is a single token-level event (sale, listing, transfer, mint).
type Activity struct {
	Collection string    `json:"collection"`
	TokenID    string    `json:"token_id"`
	Kind       string    `json:"kind"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	PriceETH   float64   `json:"price_eth,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// OrderRequest describes an order to create on the upstream marketplace.
type OrderRequest struct {
	Collection string  `json:"collection"`
	TokenID    string  `json:"token_id"`
	Side       string  `json:"side"` // "buy" or "sell"
	PriceETH   float64 `json:"price_eth"`
	Expiration int64   `json:"expiration,omitempty"`
}

// Order is the upstream's view of a created order.
type Order struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Collection string    `json:"collection"`
	TokenID    string    `json:"token_id"`
	Side       string    `json:"side"`
	PriceETH   float64   `json:"price_eth"`
	CreatedAt  time.Time `json:"created_at"`
}

// BuyRequest describes a direct buy execution against a listing.
type BuyRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Taker      string `json:"taker"`
}

// BuyResult reports the outcome of a buy execution.
type BuyResult struct {
	TxHash string  `json:"tx_hash"`
	Status string  `json:"status"`
	Price  float64 `json:"price"`
}

// Price is a spot price quote for a token in a fiat currency.
type Price struct {
	Token     string    `json:"token"`
	Currency  string    `json:"currency"`
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SocialMetrics aggregates community stats for a collection. Sections that
// could not be fetched are zeroed rather than failing the whole record.
type SocialMetrics struct {
	Collection string    `json:"collection"`
	Twitter    Twitter   `json:"twitter"`
	Discord    Discord   `json:"discord"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Twitter holds follower and engagement counts for a community account.
type Twitter struct {
	Handle     string  `json:"handle,omitempty"`
	Followers  int64   `json:"followers"`
	Tweets     int64   `json:"tweets"`
	Engagement float64 `json:"engagement"`
}

// Discord holds member counts for a community server.
type Discord struct {
	GuildID       string `json:"guild_id,omitempty"`
	Members       int64  `json:"members"`
	OnlineMembers int64  `json:"online_members"`
}

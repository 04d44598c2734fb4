// Package social aggregates Twitter and Discord community metrics for a
// collection. Each upstream is a thin client on the shared pipeline; a
// failed section degrades to zeroes instead of failing the merged record.
package social

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"nftdata/internal/cache"
	"nftdata/internal/core"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
	"nftdata/internal/restclient"
)

const (
	// TwitterResource and DiscordResource are the rate limit keys for the
	// two upstreams. They are throttled independently.
	TwitterResource = "twitter"
	DiscordResource = "discord"

	// DefaultTwitterBaseURL is the Twitter API v2 endpoint.
	DefaultTwitterBaseURL = "https://api.twitter.com/2"

	// DefaultDiscordBaseURL is the Discord API endpoint.
	DefaultDiscordBaseURL = "https://discord.com/api/v10"

	// DefaultTTL is the cache TTL for merged social metrics.
	DefaultTTL = 10 * time.Minute
)

// Links maps a collection to its community accounts.
type Links struct {
	TwitterHandle  string `yaml:"twitter" json:"twitter,omitempty"`
	DiscordGuildID string `yaml:"discord" json:"discord,omitempty"`
}

// Config holds social service configuration.
type Config struct {
	// TwitterBearerToken authenticates Twitter API v2 requests.
	TwitterBearerToken string

	// DiscordBotToken authenticates Discord API requests.
	DiscordBotToken string

	// TwitterBaseURL and DiscordBaseURL override the endpoints (tests).
	TwitterBaseURL string
	DiscordBaseURL string

	// Accounts maps lowercase collection addresses to their community
	// accounts.
	Accounts map[string]Links

	// TTL is the cache TTL for merged metrics (defaults to DefaultTTL).
	TTL time.Duration
}

// Service fetches and merges community metrics.
type Service struct {
	twitter  *restclient.Client
	discord  *restclient.Client
	cache    cache.Store
	limiter  *ratelimit.Limiter
	queue    *queue.Queue
	accounts map[string]Links
	ttl      time.Duration
}

// New creates a social metrics service using the given pipeline components.
func New(cfg Config, store cache.Store, limiter *ratelimit.Limiter, q *queue.Queue, hooks restclient.Hooks) *Service {
	twitterURL := cfg.TwitterBaseURL
	if twitterURL == "" {
		twitterURL = DefaultTwitterBaseURL
	}
	discordURL := cfg.DiscordBaseURL
	if discordURL == "" {
		discordURL = DefaultDiscordBaseURL
	}

	twitterCfg := restclient.DefaultConfig(TwitterResource, twitterURL)
	twitterCfg.Hooks = hooks
	bearer := cfg.TwitterBearerToken
	twitter := restclient.New(twitterCfg, func(req *http.Request) {
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
	})

	discordCfg := restclient.DefaultConfig(DiscordResource, discordURL)
	discordCfg.Hooks = hooks
	botToken := cfg.DiscordBotToken
	discord := restclient.New(discordCfg, func(req *http.Request) {
		if botToken != "" {
			req.Header.Set("Authorization", "Bot "+botToken)
		}
	})

	accounts := make(map[string]Links, len(cfg.Accounts))
	for address, links := range cfg.Accounts {
		accounts[strings.ToLower(address)] = links
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		twitter:  twitter,
		discord:  discord,
		cache:    store,
		limiter:  limiter,
		queue:    q,
		accounts: accounts,
		ttl:      ttl,
	}
}

// SetBaseURLs points the clients at different endpoints (tests).
func (s *Service) SetBaseURLs(twitterURL, discordURL string) {
	s.twitter.SetBaseURL(twitterURL)
	s.discord.SetBaseURL(discordURL)
}

// GetMetrics returns the merged community metrics for a collection.
// Collections with no configured accounts get a zeroed record; a section
// whose upstream fails is zeroed and logged, not fatal.
func (s *Service) GetMetrics(ctx context.Context, address string) (*core.SocialMetrics, error) {
	address = strings.ToLower(address)
	if address == "" {
		return nil, core.NewInvalidRequestError("collection address is required", nil)
	}

	key := cache.Key("/social/metrics", map[string]string{"collection": address})
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached core.SocialMetrics
		// A corrupt entry is a miss, not an error.
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	links := s.accounts[address]
	metrics := &core.SocialMetrics{
		Collection: address,
		FetchedAt:  time.Now().UTC(),
	}

	if links.TwitterHandle != "" {
		twitter, err := s.fetchTwitter(ctx, links.TwitterHandle)
		if err != nil {
			slog.Warn("twitter metrics unavailable",
				"collection", address, "handle", links.TwitterHandle, "error", err)
		} else {
			metrics.Twitter = *twitter
		}
	}

	if links.DiscordGuildID != "" {
		discord, err := s.fetchDiscord(ctx, links.DiscordGuildID)
		if err != nil {
			slog.Warn("discord metrics unavailable",
				"collection", address, "guild", links.DiscordGuildID, "error", err)
		} else {
			metrics.Discord = *discord
		}
	}

	if data, err := json.Marshal(metrics); err == nil {
		s.cache.Set(ctx, key, data, s.ttl, core.PriorityNormal)
	}
	return metrics, nil
}

// fetchTwitter pulls public metrics for a community account.
func (s *Service) fetchTwitter(ctx context.Context, handle string) (*core.Twitter, error) {
	return queue.Do(ctx, s.queue, core.PriorityNormal, func(ctx context.Context) (*core.Twitter, error) {
		if err := s.limiter.Consume(TwitterResource, 1); err != nil {
			return nil, err
		}

		resp, err := s.twitter.DoRaw(ctx, restclient.Request{
			Method:   http.MethodGet,
			Endpoint: "/users/by/username/" + handle,
			Query:    map[string]string{"user.fields": "public_metrics"},
		})
		if err != nil {
			return nil, err
		}

		metrics := gjson.GetBytes(resp.Body, "data.public_metrics")
		if !metrics.Exists() {
			return nil, core.NewNotFoundError("no public metrics for @" + handle)
		}

		followers := metrics.Get("followers_count").Int()
		listed := metrics.Get("listed_count").Int()
		twitter := &core.Twitter{
			Handle:    handle,
			Followers: followers,
			Tweets:    metrics.Get("tweet_count").Int(),
		}
		if followers > 0 {
			twitter.Engagement = float64(listed) / float64(followers)
		}
		return twitter, nil
	})
}

// fetchDiscord pulls member counts from a guild preview.
func (s *Service) fetchDiscord(ctx context.Context, guildID string) (*core.Discord, error) {
	return queue.Do(ctx, s.queue, core.PriorityNormal, func(ctx context.Context) (*core.Discord, error) {
		if err := s.limiter.Consume(DiscordResource, 1); err != nil {
			return nil, err
		}

		resp, err := s.discord.DoRaw(ctx, restclient.Request{
			Method:   http.MethodGet,
			Endpoint: "/guilds/" + guildID + "/preview",
		})
		if err != nil {
			return nil, err
		}

		return &core.Discord{
			GuildID:       guildID,
			Members:       gjson.GetBytes(resp.Body, "approximate_member_count").Int(),
			OnlineMembers: gjson.GetBytes(resp.Body, "approximate_presence_count").Int(),
		}, nil
	})
}

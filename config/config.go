// Package config provides configuration management for the gateway.
// Settings come from the environment (with an optional .env file); the
// curated collection list lives in a YAML file so it can be edited without
// touching the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
	Reservoir ReservoirConfig
	CoinGecko CoinGeckoConfig
	Social    SocialConfig

	// Curated is the allow-list loaded from Reservoir.CuratedFile.
	Curated []CuratedCollection
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MasterKey       string
	MetricsEnabled  bool
	MetricsEndpoint string
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	// TTL is the default entry time-to-live.
	TTL time.Duration
	// MaxSize is the in-memory entry capacity.
	MaxSize int
	// RedisURL switches the cache to the Redis backend when set.
	RedisURL string
}

// RateLimitConfig holds outbound rate limiter configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// QueueConfig holds request queue configuration
type QueueConfig struct {
	MaxConcurrent int
}

// ReservoirConfig holds Reservoir-specific configuration
type ReservoirConfig struct {
	APIKey      string
	BaseURL     string
	MaxRetries  int
	BatchSize   int
	CuratedTTL  time.Duration
	CuratedFile string
}

// CoinGeckoConfig holds CoinGecko-specific configuration
type CoinGeckoConfig struct {
	APIKey string
}

// SocialConfig holds Twitter/Discord credentials
type SocialConfig struct {
	TwitterBearerToken string
	DiscordBotToken    string
}

// CuratedCollection is one entry of the curated allow-list, optionally
// mapping the collection to its community accounts.
type CuratedCollection struct {
	Address string `yaml:"address"`
	Twitter string `yaml:"twitter,omitempty"`
	Discord string `yaml:"discord,omitempty"`
}

// curatedFile is the YAML document shape of the curated list.
type curatedFile struct {
	Curated []CuratedCollection `yaml:"curated"`
}

// Load reads configuration from the environment, loading a .env file first
// if one is present, and the curated list from its YAML file if configured.
func Load() (*Config, error) {
	// Optional; absence is the common case in production.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			MasterKey:       os.Getenv("NFTDATA_MASTER_KEY"),
			MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
			MetricsEndpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
		Cache: CacheConfig{
			TTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
			MaxSize:  getEnvInt("CACHE_MAX_SIZE", 1000),
			RedisURL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 60),
			Window:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Queue: QueueConfig{
			MaxConcurrent: getEnvInt("QUEUE_MAX_CONCURRENT", 5),
		},
		Reservoir: ReservoirConfig{
			APIKey:      os.Getenv("RESERVOIR_API_KEY"),
			BaseURL:     os.Getenv("RESERVOIR_BASE_URL"),
			MaxRetries:  getEnvInt("MAX_RETRIES", 3),
			BatchSize:   getEnvInt("BATCH_SIZE", 20),
			CuratedTTL:  getEnvDuration("CURATED_CACHE_TTL", 30*time.Minute),
			CuratedFile: os.Getenv("CURATED_FILE"),
		},
		CoinGecko: CoinGeckoConfig{
			APIKey: os.Getenv("COINGECKO_API_KEY"),
		},
		Social: SocialConfig{
			TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
			DiscordBotToken:    os.Getenv("DISCORD_BOT_TOKEN"),
		},
	}

	if cfg.Reservoir.CuratedFile != "" {
		curated, err := loadCuratedFile(cfg.Reservoir.CuratedFile)
		if err != nil {
			return nil, err
		}
		cfg.Curated = curated
	}

	return cfg, nil
}

// CuratedAddresses returns the addresses of the curated list.
func (c *Config) CuratedAddresses() []string {
	addresses := make([]string, 0, len(c.Curated))
	for _, entry := range c.Curated {
		addresses = append(addresses, entry.Address)
	}
	return addresses
}

// loadCuratedFile parses the curated list YAML.
func loadCuratedFile(path string) ([]CuratedCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curated file: %w", err)
	}

	var doc curatedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse curated file: %w", err)
	}

	for i, entry := range doc.Curated {
		if entry.Address == "" {
			return nil, fmt.Errorf("curated entry %d has no address", i)
		}
	}
	return doc.Curated, nil
}

// getEnv reads a string environment variable with a default.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer environment variable, returning the default if
// not set or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvBool reads a boolean environment variable, returning the default if
// not set or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvDuration reads a duration environment variable. Accepts either plain
// integers (interpreted as milliseconds, matching the windowMs-style keys
// the service has always used) or Go duration strings (e.g., "30s", "5m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

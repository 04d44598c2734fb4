package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 60, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 3, cfg.Reservoir.MaxRetries)
	assert.Equal(t, 20, cfg.Reservoir.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Reservoir.CuratedTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CACHE_MAX_SIZE", "50")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "5000")
	t.Setenv("QUEUE_MAX_CONCURRENT", "2")
	t.Setenv("RESERVOIR_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Window, "plain integers are milliseconds")
	assert.Equal(t, 2, cfg.Queue.MaxConcurrent)
	assert.Equal(t, "test-key", cfg.Reservoir.APIKey)
}

func TestDurationAcceptsGoFormat(t *testing.T) {
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("CACHE_MAX_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
}

func TestLoadCuratedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curated.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
curated:
  - address: "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"
    twitter: BoredApeYC
    discord: "123456"
  - address: "0xed5af388653567af2f388e6224dc7c4b3241c544"
`), 0o644))
	t.Setenv("CURATED_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Curated, 2)
	assert.Equal(t, "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d", cfg.Curated[0].Address)
	assert.Equal(t, "BoredApeYC", cfg.Curated[0].Twitter)
	assert.Equal(t, []string{
		"0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d",
		"0xed5af388653567af2f388e6224dc7c4b3241c544",
	}, cfg.CuratedAddresses())
}

func TestCuratedFileMissingAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curated.yaml")
	require.NoError(t, os.WriteFile(path, []byte("curated:\n  - twitter: nobody\n"), 0o644))
	t.Setenv("CURATED_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestCuratedFileNotFound(t *testing.T) {
	t.Setenv("CURATED_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

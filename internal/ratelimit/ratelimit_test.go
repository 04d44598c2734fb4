package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftdata/internal/core"
)

func TestConsumeQuota(t *testing.T) {
	l := New(Config{MaxRequests: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("reservoir", 1), "call %d should be within quota", i+1)
	}

	err := l.Consume("reservoir", 1)
	require.Error(t, err, "sixth call must exceed the quota")

	var svcErr *core.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, core.ErrorTypeRateLimit, svcErr.Type)
	assert.Greater(t, svcErr.RetryAfter, time.Duration(0), "error must carry a wait hint")
	assert.LessOrEqual(t, svcErr.RetryAfter, time.Minute)

	// The rejected call must not have consumed quota.
	assert.Equal(t, 0, l.Remaining("reservoir"))
}

func TestWindowReset(t *testing.T) {
	l := New(Config{MaxRequests: 2, Window: time.Minute})
	base := time.Now()
	l.now = func() time.Time { return base }

	require.NoError(t, l.Consume("reservoir", 1))
	require.NoError(t, l.Consume("reservoir", 1))
	require.Error(t, l.Consume("reservoir", 1))

	// After the window passes, consumption starts a fresh count of 1.
	l.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, l.Consume("reservoir", 1))
	assert.Equal(t, 1, l.Remaining("reservoir"))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(Config{MaxRequests: 1, Window: time.Minute})

	require.NoError(t, l.Consume("reservoir", 1))
	require.Error(t, l.Consume("reservoir", 1))
	require.NoError(t, l.Consume("coingecko", 1), "other keys must have their own windows")
}

func TestConsumeCost(t *testing.T) {
	l := New(Config{MaxRequests: 10, Window: time.Minute})

	require.NoError(t, l.Consume("reservoir", 7))
	assert.Equal(t, 3, l.Remaining("reservoir"))

	// A cost that would overflow is rejected without partial consumption.
	require.Error(t, l.Consume("reservoir", 4))
	assert.Equal(t, 3, l.Remaining("reservoir"))

	require.NoError(t, l.Consume("reservoir", 3))
	assert.Equal(t, 0, l.Remaining("reservoir"))
}

func TestRemainingExpiredWindow(t *testing.T) {
	l := New(Config{MaxRequests: 4, Window: time.Minute})
	base := time.Now()
	l.now = func() time.Time { return base }

	require.NoError(t, l.Consume("reservoir", 3))
	assert.Equal(t, 1, l.Remaining("reservoir"))

	// Expired-but-unreset windows report the full quota.
	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, 4, l.Remaining("reservoir"))
}

func TestReset(t *testing.T) {
	l := New(Config{MaxRequests: 1, Window: time.Minute})

	require.NoError(t, l.Consume("reservoir", 1))
	require.Error(t, l.Consume("reservoir", 1))

	l.Reset("reservoir")
	require.NoError(t, l.Consume("reservoir", 1))
}

func TestCleanup(t *testing.T) {
	l := New(Config{MaxRequests: 1, Window: time.Minute})
	base := time.Now()
	l.now = func() time.Time { return base }

	require.NoError(t, l.Consume("a", 1))
	require.NoError(t, l.Consume("b", 1))

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.NoError(t, l.Consume("c", 1))
	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.windows, 1, "only the live window should survive cleanup")
	assert.Contains(t, l.windows, "c")
}

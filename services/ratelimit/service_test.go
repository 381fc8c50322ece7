package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(cfg Config) (*RateLimitService, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)}
	s := NewRateLimitService(cfg, zap.NewNop())
	s.now = clock.Now
	return s, clock
}

func TestRateLimitService_Disabled(t *testing.T) {
	s, _ := newTestService(Config{})
	assert.False(t, s.Enabled())

	for i := 0; i < 100; i++ {
		result, err := s.CheckLimit(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
	assert.Zero(t, s.Clients())
}

func TestRateLimitService_CheckLimit(t *testing.T) {
	s, clock := newTestService(Config{RequestsPerSecond: 2, Burst: 3})
	ctx := context.Background()

	t.Run("burst is allowed", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			result, err := s.CheckLimit(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d", i)
		}
	})

	t.Run("request beyond burst is denied", func(t *testing.T) {
		result, err := s.CheckLimit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 500*time.Millisecond, result.RetryAfter)
		assert.Equal(t, 2.0, result.Limit)
		assert.Equal(t, 3, result.Burst)
	})

	t.Run("other clients have their own bucket", func(t *testing.T) {
		result, err := s.CheckLimit(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2, s.Clients())
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		clock.Advance(500 * time.Millisecond)
		result, err := s.CheckLimit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = s.CheckLimit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})
}

func TestRateLimitService_SweepsIdleClients(t *testing.T) {
	s, clock := newTestService(Config{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	ctx := context.Background()

	_, err := s.CheckLimit(ctx, "10.0.0.1")
	require.NoError(t, err)
	_, err = s.CheckLimit(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Clients())

	clock.Advance(2 * time.Minute)
	_, err = s.CheckLimit(ctx, "10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Clients())
}

func TestRateLimitService_CanceledContext(t *testing.T) {
	s, _ := newTestService(Config{RequestsPerSecond: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CheckLimit(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
}

package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, perMinute int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewWithClient(rdb, perMinute, 1), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newRedisLimiter(t, 3)
	fixed := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.2"), "budgets are per client")

	fixed = fixed.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "10.0.0.1"), "new window resets the budget")
}

func TestAllowSetsExpiry(t *testing.T) {
	l, mr := newRedisLimiter(t, 5)
	fixed := time.Unix(600, 0)
	l.now = func() time.Time { return fixed }

	require.True(t, l.Allow(context.Background(), "client"))
	ttl := mr.TTL(l.key("client", 10))
	assert.Equal(t, 2*time.Minute, ttl)
}

func TestAllowFailsOpen(t *testing.T) {
	l, mr := newRedisLimiter(t, 1)
	mr.Close()
	assert.True(t, l.Allow(context.Background(), "client"))
	assert.True(t, l.Allow(context.Background(), "client"))
}

func TestNilAndDisabled(t *testing.T) {
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), "x"))
	release, err := nilLimiter.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.False(t, nilLimiter.Enabled())

	l, err := New(Options{MaxInflight: 1})
	require.NoError(t, err)
	assert.False(t, l.Enabled())
	assert.True(t, l.Allow(context.Background(), "x"))
	assert.Error(t, l.Ping(context.Background()))
	assert.NoError(t, l.Close())
}

func TestNewWithRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := New(Options{RedisURL: "redis://" + mr.Addr(), RequestsPerMinute: 10})
	require.NoError(t, err)
	defer l.Close()
	assert.True(t, l.Enabled())
	assert.NoError(t, l.Ping(context.Background()))

	_, err = New(Options{RedisURL: "::not a url"})
	assert.Error(t, err)
}

func TestAcquireHonoursContext(t *testing.T) {
	l, _ := newRedisLimiter(t, 0)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

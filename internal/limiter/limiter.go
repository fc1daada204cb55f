package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter combines a per-client request budget kept in Redis with an
// in-process cap on concurrent transforms. A nil *Limiter allows everything.
type Limiter struct {
	rdb       *redis.Client
	perMinute int
	slots     chan struct{}
	now       func() time.Time
}

type Options struct {
	RedisURL          string
	RequestsPerMinute int
	MaxInflight       int
}

// New connects to Redis when RedisURL is set. Without it only the local
// concurrency cap applies.
func New(opts Options) (*Limiter, error) {
	l := newLimiter(nil, opts.RequestsPerMinute, opts.MaxInflight)
	if strings.TrimSpace(opts.RedisURL) == "" {
		return l, nil
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(ro)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l.rdb = c
	return l, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, perMinute, maxInflight int) *Limiter {
	return newLimiter(rdb, perMinute, maxInflight)
}

func newLimiter(rdb *redis.Client, perMinute, maxInflight int) *Limiter {
	if maxInflight <= 0 {
		maxInflight = 2
	}
	return &Limiter{rdb: rdb, perMinute: perMinute, slots: make(chan struct{}, maxInflight), now: time.Now}
}

func (l *Limiter) key(client string, window int64) string {
	return fmt.Sprintf("rl:%s:%d", strings.ToLower(client), window)
}

// Allow counts one request for client in the current one-minute window and
// reports whether it is within budget. Redis errors fail open.
func (l *Limiter) Allow(ctx context.Context, client string) bool {
	if l == nil || l.rdb == nil || l.perMinute <= 0 {
		return true
	}
	k := l.key(client, l.now().Unix()/60)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		log.Warn().Err(err).Str("client", client).Msg("rate limiter unavailable, allowing request")
		return true
	}
	if n == 1 {
		// first hit in the window owns the expiry
		if err := l.rdb.Expire(ctx, k, 2*time.Minute).Err(); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("rate limiter: set expiry failed")
		}
	}
	return n <= int64(l.perMinute)
}

// Acquire waits for a transform slot. The returned func releases it.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping checks the Redis connection. It reports an error when no client is
// configured.
func (l *Limiter) Ping(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("rate limiting disabled")
	}
	return l.rdb.Ping(ctx).Err()
}

// Enabled reports whether a Redis budget is enforced.
func (l *Limiter) Enabled() bool { return l != nil && l.rdb != nil && l.perMinute > 0 }

func (l *Limiter) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

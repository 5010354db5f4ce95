package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// minRetry keeps Wait from spinning when the script reports a zero delay.
const minRetry = 10 * time.Millisecond

// RateLimiter implements domain.RateLimiter as a sliding log in a sorted
// set. Order submission keys it by account and the HTTP API by client
// address.
type RateLimiter struct {
	rdb       *redis.Client
	script    *redis.Script
	waitLimit int
	now       func() time.Time
}

// NewRateLimiter creates a RateLimiter. waitLimit is the per-second budget
// Wait enforces; values below one mean one.
func NewRateLimiter(c *Client, waitLimit int) *RateLimiter {
	return &RateLimiter{
		rdb:       c.Underlying(),
		script:    redis.NewScript(slidingWindowLua),
		waitLimit: max(waitLimit, 1),
		now:       time.Now,
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// windowResult is one decision of the sliding window script.
type windowResult struct {
	admitted   bool
	count      int64
	retryAfter time.Duration
}

func parseWindowResult(vals []int64) (windowResult, error) {
	if len(vals) != 3 {
		return windowResult{}, fmt.Errorf("unexpected script reply of %d values", len(vals))
	}
	return windowResult{
		admitted:   vals[0] == 1,
		count:      vals[1],
		retryAfter: time.Duration(vals[2]) * time.Microsecond,
	}, nil
}

func (rl *RateLimiter) take(ctx context.Context, key string, limit int, window time.Duration) (windowResult, error) {
	vals, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return windowResult{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	res, err := parseWindowResult(vals)
	if err != nil {
		return windowResult{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return res, nil
}

// Allow admits and counts one request for key if fewer than limit were
// admitted during the trailing window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := rl.take(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	return res.admitted, nil
}

// Wait blocks until key is admitted under the per-second wait budget,
// sleeping for as long as the window says the next slot is away.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		res, err := rl.take(ctx, key, rl.waitLimit, time.Second)
		if err != nil {
			return err
		}
		if res.admitted {
			return nil
		}

		timer := time.NewTimer(max(res.retryAfter, minRetry))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
